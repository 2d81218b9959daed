package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
	"github.com/joho/godotenv"
	"k8s.io/klog"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
)

var config Config
var secrets Secrets

// ReadConfig loads .env files, the yaml config and the secrets into the
// package level config. A missing config file falls back to defaults.
func ReadConfig(configEnvVar, configFile, secretsFile string, envFiles ...string) error {
	err := loadDotEnv(envFiles...)
	if err != nil {
		return err
	}

	_, err = readConfig(configEnvVar, configFile)
	if err != nil {
		return err
	}

	_, err = readSecrets(secretsFile)
	if err != nil {
		return err
	}

	applyDefaults(&config)
	return nil
}

func CurrentConfig() *Config {
	return &config
}

func CurrentSecrets() *Secrets {
	return &secrets
}

func CurrentYnabConfig() *YnabConfig {
	return &config.Ynab
}

func CurrentYnabSecrets() *YnabSecrets {
	return &secrets.Ynab
}

func CurrentDedupConfig() *DedupConfig {
	return &config.Dedup
}

func CurrentAirtableSecrets() *AirtableSecrets {
	return &secrets.Airtable
}

func CurrentInfluxSecrets() *InfluxSecrets {
	return &secrets.Influx
}

func CurrentSqlSecrets() *SqlSecrets {
	return &secrets.SQL
}

// BudgetID prefers the configured budget over the BUDGET_ID secret.
func BudgetID() string {
	if config.Ynab.BudgetID != "" {
		return config.Ynab.BudgetID
	}
	return secrets.Ynab.BudgetID
}

// Cardholders resolves the configured cardholders and their account ids.
func Cardholders() ([]cardimporter.Cardholder, error) {
	return resolveCardholders(config.Cardholders, secrets.Cards)
}

func resolveCardholders(configured []CardholderConfig, cards CardSecrets) ([]cardimporter.Cardholder, error) {
	if len(configured) == 0 {
		return nil, errors.New("no cardholders configured")
	}

	holders := make([]cardimporter.Cardholder, 0, len(configured))
	seen := map[string]bool{}
	keys := map[string]string{}
	for _, c := range configured {
		if c.Name == "" {
			return nil, errors.New("cardholder without a name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("cardholder %s configured twice", c.Name)
		}
		seen[c.Name] = true

		// keys separate holders' fingerprints and must be unique
		key := c.Key
		if key == "" {
			key = c.Name
		}
		if other, ok := keys[key]; ok {
			return nil, fmt.Errorf("cardholders %s and %s share key %q", other, c.Name, key)
		}
		keys[key] = c.Name

		accountID := c.AccountID
		if accountID == "" && c.AccountIDEnv != "" {
			accountID = accountIDFromEnv(c.AccountIDEnv, cards)
		}

		holders = append(holders, cardimporter.Cardholder{
			Name:      c.Name,
			Key:       key,
			AccountID: strings.TrimSpace(accountID),
			Workbook:  c.Workbook,
		})
	}

	return holders, nil
}

func accountIDFromEnv(name string, cards CardSecrets) string {
	switch name {
	case "BARAK_CARD":
		if cards.BarakCard != "" {
			return cards.BarakCard
		}
	case "ADI_CARD":
		if cards.AdiCard != "" {
			return cards.AdiCard
		}
	}
	return os.Getenv(name)
}

func applyDefaults(c *Config) {
	if c.Dedup.Backend == "" {
		c.Dedup.Backend = DedupBackendFile
	}
	if c.Dedup.File == "" {
		c.Dedup.File = "data/transactionLog.json"
	}
	if c.Dedup.SQLitePath == "" {
		c.Dedup.SQLitePath = "data/cardsync.db"
	}
	if c.Dedup.Database == "" {
		c.Dedup.Database = "cardsync"
	}
	if c.Categories.File == "" && c.Categories.Airtable.Table == "" {
		c.Categories.File = "data/categories.json"
	}
	if c.Report.Influx.Measurement == "" {
		c.Report.Influx.Measurement = "card_sync"
	}

	// the two cards the importer was originally written for
	if len(c.Cardholders) == 0 {
		c.Cardholders = []CardholderConfig{
			{Name: "barak", Key: "false", AccountIDEnv: "BARAK_CARD", Workbook: "downloads/barak.xlsx"},
			{Name: "adi", Key: "true", AccountIDEnv: "ADI_CARD", Workbook: "downloads/adi.xlsx"},
		}
	}
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := []string{}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	config = Config{}

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		klog.Infof("Reading config from environment variable %s\n", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if errors.Is(err, os.ErrNotExist) {
			klog.Warningf("Config file %s not found, using defaults\n", filename)
			return &config, nil
		}
		if err != nil {
			return nil, err
		}
	}

	err = yaml.Unmarshal(raw, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func readSecrets(filename string) (*Secrets, error) {
	ejsonSecrets, ejsonErr := readEjsonSecrets(filename)

	envSecrets, envErr := readEnvSecrets()

	if ejsonErr == nil && envErr == nil {
		err := mergo.Merge(envSecrets, *ejsonSecrets)
		secrets = *envSecrets
		if err != nil {
			return nil, fmt.Errorf("Failed to merge secrets: %v", err)
		}
	} else if ejsonErr != nil && envErr == nil {
		klog.Warningf("Error to parse ejson secret, using environment only. Ejson error: %v\n", ejsonErr)
		secrets = *envSecrets
	} else if ejsonErr == nil && envErr != nil {
		klog.Warningf("Error to parse env secret. Env error: %v\n", envErr)
		secrets = *ejsonSecrets
	} else {
		return nil, fmt.Errorf("Failed to parse secrets. Ejson error: %v. Env error: %v", ejsonErr, envErr)
	}

	return &secrets, nil
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	ejsonSecrets := Secrets{}
	ejsonKeyFile := os.Getenv("CARDSYNC_EJSON_SECRET_KEY")
	ejsonKey := []byte{}
	var err error

	if ejsonKeyFile != "" {
		ejsonKey, err = os.ReadFile(ejsonKeyFile)
		if err != nil {
			return nil, err
		}
	}
	raw, err := ejson.DecryptFile(filename, "/opt/ejson/keys", string(ejsonKey))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(raw, &ejsonSecrets)
	return &ejsonSecrets, err
}

func readEnvSecrets() (*Secrets, error) {
	envSecrets := Secrets{}
	err := env.Parse(&envSecrets)
	return &envSecrets, err
}
