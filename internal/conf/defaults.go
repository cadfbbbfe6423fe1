// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "usersync")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/usersync.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("source.type", "mysql")
	viper.SetDefault("source.host", "localhost")
	viper.SetDefault("source.port", "3306")
	viper.SetDefault("source.username", "")
	viper.SetDefault("source.password", "")
	viper.SetDefault("source.database", "waterdeep")
	viper.SetDefault("source.path", "waterdeep.db")
	viper.SetDefault("source.debug", false)

	viper.SetDefault("dest.type", "mysql")
	viper.SetDefault("dest.host", "localhost")
	viper.SetDefault("dest.port", "3306")
	viper.SetDefault("dest.username", "")
	viper.SetDefault("dest.password", "")
	viper.SetDefault("dest.database", "userservice")
	viper.SetDefault("dest.path", "userservice.db")
	viper.SetDefault("dest.debug", false)

	viper.SetDefault("queue.broker", "tcp://localhost:1883")
	viper.SetDefault("queue.topic", "")
	viper.SetDefault("queue.clientid", "usersync")
	viper.SetDefault("queue.username", "")
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.publishbatchlimit", 10)

	viper.SetDefault("enqueue.defaultbatchsize", 100000)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
}
