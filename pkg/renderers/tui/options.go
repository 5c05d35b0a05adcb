package tui

// Theme captures optional message prefixes.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// Option configures a Filler.
type Option func(*Filler)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(f *Filler) {
		f.theme = theme
	}
}

// WithMaxAttempts bounds how many times invalid fields are prompted again
// before Submit gives up. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}
