// config/config.go
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/dev-mohitbeniwal/dirsync/model"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// DeletionPolicy controls what happens to the remote group when the local
// group is deleted.
type DeletionPolicy string

const (
	DeletionPolicyArchive DeletionPolicy = "archive"
	DeletionPolicyDelete  DeletionPolicy = "delete"
	DeletionPolicyIgnore  DeletionPolicy = "ignore"
)

// ParseDeletionPolicy rejects unrecognized values instead of silently
// treating them as a no-op.
func ParseDeletionPolicy(s string) (DeletionPolicy, error) {
	switch DeletionPolicy(s) {
	case DeletionPolicyArchive, DeletionPolicyDelete, DeletionPolicyIgnore:
		return DeletionPolicy(s), nil
	default:
		return "", fmt.Errorf("unrecognized deletion policy %q (expected archive, delete or ignore)", s)
	}
}

// SyncProperties is the fully parsed connector configuration handed to the
// connector at initialization.
type SyncProperties struct {
	ConsumerName                   string
	Domain                         string
	GroupIdentifierExpression      string
	SubjectIdentifierExpression    string
	SyncMarkerName                 string
	DirectoryUserCacheValidity     time.Duration
	DirectoryGroupCacheValidity    time.Duration
	LocalCacheValidity             time.Duration
	ProvisionUsers                 bool
	DeprovisionUsers               bool
	SimpleSubjectNaming            bool
	SubjectGivenNameField          string
	SubjectSurnameField            string
	IncludeUserInGlobalAddressList bool
	HandleDeletedGroup             DeletionPolicy
	DefaultGroupSettings           model.GroupSettings
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("log.dir", "logging")

	viper.SetDefault("directory.baseURL", "http://localhost:9000/admin/v1")

	viper.SetDefault("sync.consumerName", "dirsync")
	viper.SetDefault("sync.pollInterval", "30s")
	viper.SetDefault("sync.fullyPopulateDecisions", false)
	viper.SetDefault("sync.groupIdentifierExpression", "${groupPath}")
	viper.SetDefault("sync.subjectIdentifierExpression", "${subjectId}")
	viper.SetDefault("sync.syncMarkerName", "etc:attribute:dirsync:syncToDirectory")
	viper.SetDefault("sync.directoryUserCacheValidity", "30m")
	viper.SetDefault("sync.directoryGroupCacheValidity", "30m")
	viper.SetDefault("sync.localCacheValidity", "5m")
	viper.SetDefault("sync.provisionUsers", false)
	viper.SetDefault("sync.deprovisionUsers", false)
	viper.SetDefault("sync.simpleSubjectNaming", true)
	viper.SetDefault("sync.subjectGivenNameField", "givenName")
	viper.SetDefault("sync.subjectSurnameField", "sn")
	viper.SetDefault("sync.includeUserInGlobalAddressList", true)
	viper.SetDefault("sync.handleDeletedGroup", "archive")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	// Fail fast on a bad deletion policy rather than discovering it on the
	// first group delete.
	if _, err := ParseDeletionPolicy(viper.GetString("sync.handleDeletedGroup")); err != nil {
		return err
	}

	return nil
}

// SyncProperties assembles the typed connector settings from the loaded
// configuration.
func GetSyncProperties() (*SyncProperties, error) {
	policy, err := ParseDeletionPolicy(viper.GetString("sync.handleDeletedGroup"))
	if err != nil {
		return nil, err
	}

	props := &SyncProperties{
		ConsumerName:                   viper.GetString("sync.consumerName"),
		Domain:                         viper.GetString("sync.domain"),
		GroupIdentifierExpression:      viper.GetString("sync.groupIdentifierExpression"),
		SubjectIdentifierExpression:    viper.GetString("sync.subjectIdentifierExpression"),
		SyncMarkerName:                 viper.GetString("sync.syncMarkerName"),
		DirectoryUserCacheValidity:     viper.GetDuration("sync.directoryUserCacheValidity"),
		DirectoryGroupCacheValidity:    viper.GetDuration("sync.directoryGroupCacheValidity"),
		LocalCacheValidity:             viper.GetDuration("sync.localCacheValidity"),
		ProvisionUsers:                 viper.GetBool("sync.provisionUsers"),
		DeprovisionUsers:               viper.GetBool("sync.deprovisionUsers"),
		SimpleSubjectNaming:            viper.GetBool("sync.simpleSubjectNaming"),
		SubjectGivenNameField:          viper.GetString("sync.subjectGivenNameField"),
		SubjectSurnameField:            viper.GetString("sync.subjectSurnameField"),
		IncludeUserInGlobalAddressList: viper.GetBool("sync.includeUserInGlobalAddressList"),
		HandleDeletedGroup:             policy,
	}

	// The default group-settings bundle is passed through to the directory
	// service verbatim.
	if err := viper.UnmarshalKey("sync.defaultGroupSettings", &props.DefaultGroupSettings); err != nil {
		return nil, err
	}

	return props, nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
