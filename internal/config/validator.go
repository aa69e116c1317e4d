package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "consumer.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// nameRegex validates stream names, partition prefixes and concerns.
// Names start with a letter and may contain alphanumerics, '.', '_' and '-'.
var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidExistingStrategies returns the accepted stream.on_existing values
func ValidExistingStrategies() []string {
	return []string{"throw", "overwrite", "skip"}
}

// Upper bounds that keep a misconfiguration from turning into a resource leak.
const (
	maxPartitions = 1024
	maxWorkers    = 256
	maxAttempts   = 100
	maxInterval   = time.Hour
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Stream config
	errors = append(errors, c.validateStream()...)

	// Validate Handling config
	errors = append(errors, c.validateHandling()...)

	// Validate Mutex config
	errors = append(errors, c.validateMutex()...)

	// Validate Retry config
	errors = append(errors, c.validateRetry()...)

	// Validate Consumer config
	errors = append(errors, c.validateConsumer()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateStream validates the StreamConfig
func (c *Config) validateStream() []ValidationError {
	var errors []ValidationError

	if !nameRegex.MatchString(c.Stream.Name) {
		errors = append(errors, ValidationError{
			Field:   "stream.name",
			Value:   c.Stream.Name,
			Message: "must start with a letter and contain only letters, digits, '.', '_' or '-'",
		})
	}

	if c.Stream.Partitions < 1 || c.Stream.Partitions > maxPartitions {
		errors = append(errors, ValidationError{
			Field:   "stream.partitions",
			Value:   c.Stream.Partitions,
			Message: fmt.Sprintf("must be between 1 and %d", maxPartitions),
		})
	}

	if !nameRegex.MatchString(c.Stream.PartitionPrefix) {
		errors = append(errors, ValidationError{
			Field:   "stream.partition_prefix",
			Value:   c.Stream.PartitionPrefix,
			Message: "must start with a letter and contain only letters, digits, '.', '_' or '-'",
		})
	}

	if _, err := serializer.ParseRepresentation(c.Stream.Serializer, c.Stream.Format); err != nil {
		errors = append(errors, ValidationError{
			Field:   "stream.serializer",
			Value:   c.Stream.Serializer + "/" + c.Stream.Format,
			Message: err.Error(),
		})
	}

	if _, err := stream.ParseExistingStreamStrategy(c.Stream.OnExisting); err != nil {
		errors = append(errors, ValidationError{
			Field:   "stream.on_existing",
			Value:   c.Stream.OnExisting,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidExistingStrategies(), ", ")),
		})
	}

	return errors
}

// validateHandling validates the HandlingConfig
func (c *Config) validateHandling() []ValidationError {
	var errors []ValidationError

	if _, err := record.ParseOrderBy(c.Handling.Order); err != nil {
		errors = append(errors, ValidationError{
			Field:   "handling.order",
			Value:   c.Handling.Order,
			Message: "must be one of: ascending, descending, random",
		})
	}

	if _, err := record.ParseTagMatchStrategy(c.Handling.TagMatch); err != nil {
		errors = append(errors, ValidationError{
			Field:   "handling.tag_match",
			Value:   c.Handling.TagMatch,
			Message: err.Error(),
		})
	}

	if _, err := typerep.ParseVersionMatchStrategy(c.Handling.VersionMatch); err != nil {
		errors = append(errors, ValidationError{
			Field:   "handling.version_match",
			Value:   c.Handling.VersionMatch,
			Message: "must be one of: any, specifiedversion, unversioned",
		})
	}

	return errors
}

// validateMutex validates the MutexConfig
func (c *Config) validateMutex() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateConcern("mutex.concern", c.Mutex.Concern)...)
	errors = append(errors, validateInterval("mutex.polling_interval", c.Mutex.PollingInterval)...)

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.Attempts < 1 || c.Retry.Attempts > maxAttempts {
		errors = append(errors, ValidationError{
			Field:   "retry.attempts",
			Value:   c.Retry.Attempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxAttempts),
		})
	}

	// Zero backoff retries immediately
	if c.Retry.Backoff < 0 || c.Retry.Backoff > maxInterval {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff",
			Value:   c.Retry.Backoff,
			Message: fmt.Sprintf("must be between 0 and %s", maxInterval),
		})
	}

	return errors
}

// validateConsumer validates the ConsumerConfig
func (c *Config) validateConsumer() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateConcern("consumer.concern", c.Consumer.Concern)...)

	if c.Consumer.Workers < 1 || c.Consumer.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "consumer.workers",
			Value:   c.Consumer.Workers,
			Message: fmt.Sprintf("must be between 1 and %d", maxWorkers),
		})
	}

	errors = append(errors, validateInterval("consumer.poll_interval", c.Consumer.PollInterval)...)

	if c.Consumer.MaxRetries < 0 || c.Consumer.MaxRetries > maxAttempts {
		errors = append(errors, ValidationError{
			Field:   "consumer.max_retries",
			Value:   c.Consumer.MaxRetries,
			Message: fmt.Sprintf("must be between 0 and %d", maxAttempts),
		})
	}

	if c.Consumer.Concern == c.Mutex.Concern {
		errors = append(errors, ValidationError{
			Field:   "consumer.concern",
			Value:   c.Consumer.Concern,
			Message: "must differ from mutex.concern",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(c.Logging.File, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.file",
			Value:   c.Logging.File,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

func validateConcern(field, concern string) []ValidationError {
	if concern == handling.StreamBlockingConcern {
		return []ValidationError{{
			Field:   field,
			Value:   concern,
			Message: "is reserved for stream-level blocking",
		}}
	}
	if !nameRegex.MatchString(concern) {
		return []ValidationError{{
			Field:   field,
			Value:   concern,
			Message: "must start with a letter and contain only letters, digits, '.', '_' or '-'",
		}}
	}
	return nil
}

func validateInterval(field string, d time.Duration) []ValidationError {
	if d <= 0 || d > maxInterval {
		return []ValidationError{{
			Field:   field,
			Value:   d,
			Message: fmt.Sprintf("must be positive and at most %s", maxInterval),
		}}
	}
	return nil
}
