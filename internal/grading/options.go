package grading

// Config holds the credit thresholds of the evaluator.
type Config struct {
	// ShortAnswerThreshold is the keyword fraction at or above which a short answer is correct.
	ShortAnswerThreshold float64
	// ShortAnswerPartialCredit awards the keyword fraction when the threshold is missed.
	ShortAnswerPartialCredit bool
	// MultipleChoicePartialCredit awards (correct picks - wrong picks) / correct options.
	MultipleChoicePartialCredit bool
	// MatchingPartialCredit awards correct pairs / total pairs.
	MatchingPartialCredit bool
}

func DefaultConfig() Config {
	return Config{
		ShortAnswerThreshold: 0.7,
	}
}

type Option func(*Config)

func WithShortAnswerThreshold(threshold float64) Option {
	return func(c *Config) {
		if threshold > 0 && threshold <= 1 {
			c.ShortAnswerThreshold = threshold
		}
	}
}

func WithShortAnswerPartialCredit(enabled bool) Option {
	return func(c *Config) { c.ShortAnswerPartialCredit = enabled }
}

func WithMultipleChoicePartialCredit(enabled bool) Option {
	return func(c *Config) { c.MultipleChoicePartialCredit = enabled }
}

func WithMatchingPartialCredit(enabled bool) Option {
	return func(c *Config) { c.MatchingPartialCredit = enabled }
}

// WithConfig replaces the whole configuration, e.g. one loaded from the environment.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
		if c.ShortAnswerThreshold <= 0 || c.ShortAnswerThreshold > 1 {
			c.ShortAnswerThreshold = DefaultConfig().ShortAnswerThreshold
		}
	}
}
