package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	BotToken     string
	OwnerChatID  int64
	AllowedUsers []string
	LogoPath     string
	TicketsDir   string
	Sheets       SheetsConfig
	Drive        DriveConfig
	Mail         MailConfig
	Database     DatabaseConfig
	Server       ServerConfig
}

// SheetsConfig holds Google Sheets configuration
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
}

// DriveConfig holds Google Drive configuration
type DriveConfig struct {
	ParentFolderID string
}

// MailConfig holds SMTP configuration for ticket notifications
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// InternalCC receives a copy of every ticket notification.
	InternalCC string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// ServerConfig holds the liveness HTTP server configuration
type ServerConfig struct {
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	var ownerChatID int64
	if raw := os.Getenv("OWNER_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OWNER_CHAT_ID %q: %w", raw, err)
		}
		ownerChatID = id
	}

	var allowed []string
	for _, u := range strings.Split(os.Getenv("ALLOWED_USERS"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			allowed = append(allowed, u)
		}
	}

	mailPort, err := strconv.Atoi(getEnv("MAIL_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAIL_PORT: %w", err)
	}

	return &Config{
		BotToken:     botToken,
		OwnerChatID:  ownerChatID,
		AllowedUsers: allowed,
		LogoPath:     getEnv("LOGO_PATH", "./assets/logo.png"),
		TicketsDir:   getEnv("TICKETS_DIR", "./tickets"),
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ID"),
			CredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", "./service-account.json"),
		},
		Drive: DriveConfig{
			ParentFolderID: os.Getenv("DRIVE_PARENT_FOLDER_ID"),
		},
		Mail: MailConfig{
			Host:       getEnv("MAIL_HOST", "smtp.gmail.com"),
			Port:       mailPort,
			Username:   os.Getenv("MAIL_USER"),
			Password:   os.Getenv("MAIL_PASS"),
			From:       getEnv("MAIL_FROM", os.Getenv("MAIL_USER")),
			InternalCC: getEnv("MAIL_INTERNAL_CC", "info@repuestoselcholo.com.ar"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "devoluciones"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
