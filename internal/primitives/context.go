package primitives

// Context is the explicit execution context threaded through every dispatch
// entry point. It holds the ambient dispatch state for one logical call stack:
// the "inside transform user code" flag, the ambient gradient modes and the
// excluded dispatch keys.
//
// Context is not safe for concurrent use. Dispatch is single-threaded and
// re-entrant; every override is scoped to the closure it wraps.
type Context struct {
	duringTransform bool
	gradMode        bool
	fwdGradMode     bool
	excluded        KeySet
}

// NewContext creates a Context with gradient and forward-gradient modes enabled.
func NewContext() *Context {
	return &Context{
		gradMode:    true,
		fwdGradMode: true,
		excluded:    NewKeySet(),
	}
}

// DuringTransform reports whether execution is inside user code of a transform.
func (c *Context) DuringTransform() bool { return c.duringTransform }

// GradMode reports whether gradient tracking is enabled.
func (c *Context) GradMode() bool { return c.gradMode }

// FwdGradMode reports whether forward-gradient tracking is enabled.
func (c *Context) FwdGradMode() bool { return c.fwdGradMode }

// Excluded returns the currently excluded dispatch keys.
func (c *Context) Excluded() KeySet { return c.excluded }

// WithDuringTransform runs fn with the "inside transform user code" flag set to
// enabled, restoring the previous value afterwards.
func (c *Context) WithDuringTransform(enabled bool, fn func() error) error {
	prev := c.duringTransform
	c.duringTransform = enabled
	defer func() { c.duringTransform = prev }()
	return fn()
}

// WithGradMode runs fn with gradient tracking set to enabled.
func (c *Context) WithGradMode(enabled bool, fn func() error) error {
	prev := c.gradMode
	c.gradMode = enabled
	defer func() { c.gradMode = prev }()
	return fn()
}

// WithFwdGradMode runs fn with forward-gradient tracking set to enabled.
func (c *Context) WithFwdGradMode(enabled bool, fn func() error) error {
	prev := c.fwdGradMode
	c.fwdGradMode = enabled
	defer func() { c.fwdGradMode = prev }()
	return fn()
}

// WithExcludedKeys runs fn with keys excluded from dispatch.
func (c *Context) WithExcludedKeys(keys KeySet, fn func() error) error {
	prev := c.excluded
	c.excluded = keys
	defer func() { c.excluded = prev }()
	return fn()
}

// Snapshot returns a copy of the context state for logging and persistence.
func (c *Context) Snapshot() map[string]any {
	excluded := make([]string, 0, c.excluded.Len())
	for _, k := range c.excluded.Keys() {
		excluded = append(excluded, string(k))
	}
	return map[string]any{
		"duringTransform": c.duringTransform,
		"gradMode":        c.gradMode,
		"fwdGradMode":     c.fwdGradMode,
		"excluded":        excluded,
	}
}
