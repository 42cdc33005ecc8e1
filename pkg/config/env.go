package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "TIKOTOYS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TIKOTOYS_DB_DSN"
	EnvDBHost = "TIKOTOYS_DB_HOST"
	EnvDBUser = "TIKOTOYS_DB_USER"
	EnvDBName = "TIKOTOYS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
