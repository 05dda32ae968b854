// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks personal and banking data in production
// ============================================================================

package utils

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	LogLevel = getLogLevel()
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func getLogLevel() int {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ============================================================================
// MASKING PATTERNS
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Plaid credentials: access-sandbox-..., public-production-..., link-..., processor-...
	plaidTokenRegex = regexp.MustCompile(`\b(access|public|link|processor)-(sandbox|development|production)-[A-Za-z0-9-]+`)

	ssnRegex = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)

	amountRegex = regexp.MustCompile(`\$\s?\d+([.,]\d{1,2})?\b`)

	// Document and identity ids: uuids, with or without hyphens.
	idRegex = regexp.MustCompile(`\b[0-9a-fA-F]{8}(?:-?[0-9a-fA-F]{4}){3}-?[0-9a-fA-F]{12}\b`)
)

// ============================================================================
// MASKING
// ============================================================================

// MaskString masks sensitive values in a message. Credentials are always
// masked; personal data only in production.
func MaskString(input string) string {
	result := plaidTokenRegex.ReplaceAllString(input, "$1-$2-***")

	if !IsProduction {
		return result
	}

	result = emailRegex.ReplaceAllString(result, "***@***.***")
	result = ssnRegex.ReplaceAllString(result, "***-**-****")
	result = amountRegex.ReplaceAllString(result, "$***")
	return maskIDs(result)
}

func maskIDs(input string) string {
	return idRegex.ReplaceAllStringFunc(input, func(id string) string {
		return id[:8] + "..."
	})
}

// MaskID keeps the first 8 characters of an id in production.
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

func MaskEmail(email string) string {
	if !IsProduction {
		return email
	}
	return "***@***.***"
}

// ============================================================================
// LEVELLED LOGGING
// ============================================================================

func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// ============================================================================
// DOMAIN LOGGING
// ============================================================================

// LogBankingAction logs a step of the link workflow without exposing ids.
func LogBankingAction(action string, itemID string, userID string) {
	log.Printf("[Banking] %s - Item: %s User: %s",
		action,
		MaskID(itemID),
		MaskID(userID))
}

func LogAuthAction(action string, email string, success bool) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}

	log.Printf("[Auth] %s - Email: %s Status: %s",
		action,
		MaskEmail(email),
		status)
}

func LogAPIRequest(method string, path string, userID string, statusCode int, duration string) {
	if IsProduction {
		path = maskIDs(path)
	}
	log.Printf("[API] %s %s - User: %s Status: %d Duration: %s",
		method,
		path,
		MaskID(userID),
		statusCode,
		duration)
}

func LogWebSocket(action string, userID string) {
	log.Printf("[WS] %s - User: %s", action, MaskID(userID))
}

// ============================================================================
// STARTUP
// ============================================================================

func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

func LogStartup(appName string, version string, port string) {
	log.Printf("🚀 %s v%s starting...", appName, version)
	log.Printf("   Mode: %s", GetEnvMode())
	log.Printf("   Port: %s", port)
	log.Printf("   Log Level: %d", LogLevel)
	if IsProduction {
		log.Printf("   ⚠️  Production mode: sensitive data will be masked in logs")
	}
}
