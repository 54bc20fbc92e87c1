package scramble

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the randomness source. Tests pass a seeded source.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}
