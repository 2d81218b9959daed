package config

type Config struct {
	Ynab        YnabConfig         `json:"ynab"`
	Cardholders []CardholderConfig `json:"cardholders"`
	Categories  CategoriesConfig   `json:"categories"`
	Dedup       DedupConfig        `json:"dedup"`
	Report      ReportConfig       `json:"report"`
}

type Secrets struct {
	Ynab     YnabSecrets
	Airtable AirtableSecrets
	Influx   InfluxSecrets
	SQL      SqlSecrets
	Cards    CardSecrets

	// Alternative to the Sql struct, designed to be used with heroku env variable
	DatabaseURL string `env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// YNAB
///////////////////////////////////////////////////////////////////////////////////////

type YnabConfig struct {
	BudgetID  string `json:"budgetId"`
	BaseURL   string `json:"baseUrl"`
	BatchSize int    `json:"batchSize"`
}

type YnabSecrets struct {
	YnabAccessToken string `json:"ynabAccessToken" env:"YNAB_ACCESS_TOKEN"`
	BudgetID        string `json:"budgetId" env:"BUDGET_ID"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Cardholders
///////////////////////////////////////////////////////////////////////////////////////

type CardholderConfig struct {
	Name string `json:"name"`
	// Key is written into fingerprints, changing it makes every past expense look new.
	// Defaults to Name.
	Key string `json:"key"`
	// AccountID wins over AccountIDEnv
	AccountID    string `json:"accountId"`
	AccountIDEnv string `json:"accountIdEnv"`
	Workbook     string `json:"workbook"`
}

// CardSecrets holds the account ids of the two default cardholders.
type CardSecrets struct {
	BarakCard string `json:"barakCard" env:"BARAK_CARD"`
	AdiCard   string `json:"adiCard" env:"ADI_CARD"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Categories
///////////////////////////////////////////////////////////////////////////////////////

type CategoriesConfig struct {
	File     string `json:"file"`
	Airtable struct {
		BaseID string `json:"airtableBaseId"`
		Table  string `json:"table"`
	} `json:"airtable"`
}

type AirtableSecrets struct {
	AirtableAPIKey string `json:"airtableApiKey" env:"AIRTABLE_API_KEY"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Dedup
///////////////////////////////////////////////////////////////////////////////////////

const (
	DedupBackendFile     = "file"
	DedupBackendSQLite   = "sqlite"
	DedupBackendPostgres = "postgres"
)

type DedupConfig struct {
	Backend    string `json:"backend"`
	File       string `json:"file"`
	SQLitePath string `json:"sqlitePath"`
	Database   string `json:"database"`
}

type SqlSecrets struct {
	SqlHost     string `env:"SQL_HOST"`
	SqlUsername string `env:"SQL_USERNAME"`
	SqlPassword string `env:"SQL_PASSWORD"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Report
///////////////////////////////////////////////////////////////////////////////////////

type ReportConfig struct {
	Influx struct {
		Database    string `json:"database"`
		Measurement string `json:"measurement"`
	} `json:"influx"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `env:"INFLUX_ENDPOINT"`
	InfluxUsername string `env:"INFLUX_USERNAME"`
	InfluxPassword string `env:"INFLUX_PASSWORD"`
}
