package app

// closers collects release functions for dependencies opened during startup.
type closers []func()

func (c *closers) add(fn func()) {
	*c = append(*c, fn)
}

// release runs the collected functions newest first, so a dependency is
// closed before the ones it was built on.
func (c closers) release() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}
