package ioc

import (
	"gitee.com/flycash/notification-dispatch/internal/client"
	"github.com/gotomicro/ego/core/econf"
)

type directoryConfig struct {
	ProfileBaseURL       string `yaml:"profileBaseUrl"`
	AuthorizationBaseURL string `yaml:"authorizationBaseUrl"`
}

func loadDirectoryConfig() directoryConfig {
	var cfg directoryConfig
	if err := econf.UnmarshalKey("directory", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitProfileClient() client.ProfileClient {
	return client.NewProfileClient(loadDirectoryConfig().ProfileBaseURL)
}

func InitAuthorizationClient() client.AuthorizationClient {
	return client.NewAuthorizationClient(loadDirectoryConfig().AuthorizationBaseURL)
}

func InitConditionClient() client.ConditionClient {
	return client.NewConditionClient()
}
