package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Engine         EngineConfig         `yaml:"engine" mapstructure:"engine"`
	Detection      DetectionConfig      `yaml:"detection" mapstructure:"detection"`
	Classification ClassificationConfig `yaml:"classification" mapstructure:"classification"`
	ML             MLConfig             `yaml:"ml" mapstructure:"ml"`
	Anonymizer     AnonymizerConfig     `yaml:"anonymizer" mapstructure:"anonymizer"`
	Cache          CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Feedback       FeedbackConfig       `yaml:"feedback" mapstructure:"feedback"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Events         EventsConfig         `yaml:"events" mapstructure:"events"`
	Logging        LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig contains registry-wide recognizer configuration
type EngineConfig struct {
	// LowConfidenceMultiplier is applied to weak patterns and to entity
	// types listed in LowScoreEntityTypes.
	LowConfidenceMultiplier float64  `yaml:"low_confidence_multiplier" mapstructure:"low_confidence_multiplier"`
	LowScoreEntityTypes     []string `yaml:"low_score_entity_types" mapstructure:"low_score_entity_types"`
	// Allow-lists; empty means no restriction.
	EnabledCountries   []string `yaml:"enabled_countries" mapstructure:"enabled_countries"`
	EnabledLanguages   []string `yaml:"enabled_languages" mapstructure:"enabled_languages"`
	EnabledRecognizers []string `yaml:"enabled_recognizers" mapstructure:"enabled_recognizers"`
	GlobalDenyList     []string `yaml:"global_deny_list" mapstructure:"global_deny_list"`
	// GlobalContextWords extend the per-recognizer context words for
	// recognizers that opt in via useGlobalContext.
	GlobalContextWords []string `yaml:"global_context_words" mapstructure:"global_context_words"`
	DefaultCountry     string   `yaml:"default_country" mapstructure:"default_country"`
	DefaultLanguage    string   `yaml:"default_language" mapstructure:"default_language"`
	// DefinitionPaths lists YAML files with declarative recognizer
	// definitions loaded at startup after the built-ins.
	DefinitionPaths []string `yaml:"definition_paths" mapstructure:"definition_paths"`
}

// DetectionConfig contains pipeline and pass tuning
type DetectionConfig struct {
	// MinEntityLength discards fuzzy candidates shorter than this after
	// normalization.
	MinEntityLength int `yaml:"min_entity_length" mapstructure:"min_entity_length"`
	// OverlapMergeThreshold is the span-overlap ratio above which matches
	// from different sources merge into one entity.
	OverlapMergeThreshold float64 `yaml:"overlap_merge_threshold" mapstructure:"overlap_merge_threshold"`
	Fuzzy                 FuzzyConfig   `yaml:"fuzzy" mapstructure:"fuzzy"`
	Address               AddressConfig `yaml:"address" mapstructure:"address"`
}

// FuzzyConfig bounds dynamic regexes built from previously seen entity text.
// The limits protect against catastrophic backtracking.
type FuzzyConfig struct {
	MaxEntityLength       int           `yaml:"max_entity_length" mapstructure:"max_entity_length"`
	MaxEntityCharsCleaned int           `yaml:"max_entity_chars_cleaned" mapstructure:"max_entity_chars_cleaned"`
	GapTolerance          int           `yaml:"gap_tolerance" mapstructure:"gap_tolerance"`
	RegexTimeout          time.Duration `yaml:"regex_timeout" mapstructure:"regex_timeout"`
}

// AddressConfig tunes address-component grouping. The guard values are
// heuristics; they are configuration, not invariants.
type AddressConfig struct {
	// WindowChars is the maximum gap between consecutive components.
	WindowChars int `yaml:"window_chars" mapstructure:"window_chars"`
	// MaxSpan rejects merged spans longer than this many characters.
	MaxSpan int `yaml:"max_span" mapstructure:"max_span"`
	// MaxParagraphBreaks rejects groups spanning more than this many
	// blank-line-separated paragraph breaks.
	MaxParagraphBreaks int `yaml:"max_paragraph_breaks" mapstructure:"max_paragraph_breaks"`
}

// TypeRules adjusts entity confidence for one document type
type TypeRules struct {
	RequiredTypes    []string           `yaml:"required_types" mapstructure:"required_types"`
	BoostedTypes     []string           `yaml:"boosted_types" mapstructure:"boosted_types"`
	SuppressedTypes  []string           `yaml:"suppressed_types" mapstructure:"suppressed_types"`
	ConfidenceBoosts map[string]float64 `yaml:"confidence_boosts" mapstructure:"confidence_boosts"`
}

// ClassificationConfig contains the document rule engine tables
type ClassificationConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	// Rules is keyed by document type (INVOICE, LETTER, ...).
	Rules map[string]TypeRules `yaml:"rules" mapstructure:"rules"`
	// ZoneDeltas is keyed by entity type, then zone (header/body/footer).
	ZoneDeltas map[string]map[string]float64 `yaml:"zone_deltas" mapstructure:"zone_deltas"`
}

// MLConfig contains the optional NER backend configuration
type MLConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	ModelPath     string        `yaml:"model_path" mapstructure:"model_path"`
	MaxLength     int           `yaml:"max_length" mapstructure:"max_length"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	WarmupTimeout time.Duration `yaml:"warmup_timeout" mapstructure:"warmup_timeout"`
	MinScore      float64       `yaml:"min_score" mapstructure:"min_score"`
}

// AnonymizerConfig contains token assignment configuration
type AnonymizerConfig struct {
	// TypeAliases folds related entity types into one token family,
	// e.g. PERSON_NAME -> PERSON.
	TypeAliases map[string]string `yaml:"type_aliases" mapstructure:"type_aliases"`
}

// CacheConfig contains the optional detection-result cache configuration
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL   string        `yaml:"redis_url" mapstructure:"redis_url"`
	DefaultTTL time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix  string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// FeedbackConfig contains the correction store configuration
type FeedbackConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ServerConfig contains the local HTTP API configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// MaxBodyBytes bounds request bodies on the detect/anonymize routes.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit    struct {
		Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
		Burst             int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EventsConfig contains the websocket event stream configuration
type EventsConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections" mapstructure:"max_connections"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			LowConfidenceMultiplier: 0.4,
			LowScoreEntityTypes:     []string{"NUMBER", "DATE"},
			GlobalContextWords:      []string{"kunde", "kundin", "client", "konto", "vertrag", "police", "referenz"},
			DefaultCountry:          "CH",
			DefaultLanguage:         "de",
		},
		Detection: DetectionConfig{
			MinEntityLength:       3,
			OverlapMergeThreshold: 0.5,
			Fuzzy: FuzzyConfig{
				MaxEntityLength:       50,
				MaxEntityCharsCleaned: 30,
				GapTolerance:          2,
				RegexTimeout:          100 * time.Millisecond,
			},
			Address: AddressConfig{
				WindowChars:        40,
				MaxSpan:            100,
				MaxParagraphBreaks: 1,
			},
		},
		Classification: ClassificationConfig{
			MinConfidence: 0.4,
			Rules:         DefaultTypeRules(),
			ZoneDeltas:    DefaultZoneDeltas(),
		},
		ML: MLConfig{
			Enabled:       true,
			MaxLength:     512,
			Timeout:       5 * time.Second,
			WarmupTimeout: 30 * time.Second,
			MinScore:      0.5,
		},
		Anonymizer: AnonymizerConfig{
			TypeAliases: map[string]string{
				"PERSON_NAME":       "PERSON",
				"PERSON_SALUTATION": "PERSON",
				"PER":            "PERSON",
				"STREET_ADDRESS": "ADDRESS",
				"SWISS_ADDRESS":  "ADDRESS",
				"EU_ADDRESS":     "ADDRESS",
				"LOC":            "LOCATION",
				"ORG":            "ORGANIZATION",
				"E_MAIL":         "EMAIL",
			},
		},
		Cache: CacheConfig{
			Enabled:    false,
			RedisURL:   "redis://localhost:6379/0",
			DefaultTTL: 15 * time.Minute,
			KeyPrefix:  "docveil:detect:",
		},
		Feedback: FeedbackConfig{
			Enabled: false,
			Path:    "docveil-feedback.db",
		},
		Server: ServerConfig{
			Port:         8091,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		Events: EventsConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
			MaxConnections: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 20
	cfg.Server.RateLimit.Burst = 40

	return cfg
}

// DefaultTypeRules returns the built-in document-type rule table.
func DefaultTypeRules() map[string]TypeRules {
	return map[string]TypeRules{
		"INVOICE": {
			RequiredTypes:   []string{"AMOUNT"},
			BoostedTypes:    []string{"IBAN", "AMOUNT", "INVOICE_NUMBER", "DATE"},
			SuppressedTypes: []string{"PERSON_SALUTATION"},
			ConfidenceBoosts: map[string]float64{
				"IBAN":           0.2,
				"AMOUNT":         0.15,
				"INVOICE_NUMBER": 0.2,
				"DATE":           0.1,
			},
		},
		"LETTER": {
			BoostedTypes: []string{"PERSON_SALUTATION", "SWISS_ADDRESS", "ADDRESS"},
			ConfidenceBoosts: map[string]float64{
				"PERSON_SALUTATION": 0.2,
				"SWISS_ADDRESS":     0.15,
				"ADDRESS":           0.15,
			},
		},
		"CONTRACT": {
			BoostedTypes: []string{"PERSON_SALUTATION", "DATE", "SWISS_AVS"},
			ConfidenceBoosts: map[string]float64{
				"PERSON_SALUTATION": 0.1,
				"DATE":              0.1,
				"SWISS_AVS":         0.2,
			},
		},
		"MEDICAL": {
			BoostedTypes: []string{"SWISS_AVS", "DATE", "PERSON_SALUTATION"},
			ConfidenceBoosts: map[string]float64{
				"SWISS_AVS":         0.25,
				"DATE":              0.1,
				"PERSON_SALUTATION": 0.15,
			},
		},
		"FORM": {
			BoostedTypes: []string{"SWISS_AVS", "EMAIL", "PHONE"},
			ConfidenceBoosts: map[string]float64{
				"SWISS_AVS": 0.2,
				"EMAIL":     0.1,
				"PHONE":     0.1,
			},
		},
	}
}

// DefaultZoneDeltas returns the built-in position-zone adjustment table.
func DefaultZoneDeltas() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"INVOICE_NUMBER": {
			"header": 0.15,
			"footer": -0.05,
		},
		"SIGNATURE": {
			"footer": 0.2,
		},
		"PERSON_SALUTATION": {
			"header": 0.1,
			"body":   0.1,
			"footer": -0.1,
		},
		"IBAN": {
			"footer": 0.1,
		},
	}
}
