package registry

import (
	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/tool"
)

// builtinRegistrations returns the canonical registration list for all
// built-in Retrofit tools, in display order. Called once by Global().
//
// The migration tools carry construction-time capability checks; when a
// check fails the tool is registered under the same canonical name with
// a placeholder factory, so the registry is always fully populated and
// lookups never fail just because an optional component is missing.
func builtinRegistrations() []Registration {
	regs := []Registration{
		{Name: tool.NameCodeAnalyzer, Factory: func() core.Tool { return tool.NewCodeAnalyzer() }},
		{Name: tool.NameDependencyAnalyzer, Factory: func() core.Tool { return tool.NewDependencyAnalyzer() }},
		{Name: tool.NameWatchdogAnalyzer, Factory: func() core.Tool { return tool.NewWatchdogAnalyzer() }},
		{Name: tool.NameSecurityScanner, Factory: func() core.Tool { return tool.NewSecurityScanner() }},
		{Name: tool.NameTestGenerator, Factory: func() core.Tool { return tool.NewTestGenerator() }},
		{Name: tool.NameVersionMigrator, Factory: func() core.Tool { return tool.NewVersionMigrator() }},
	}

	regs = append(regs, optionalRegistration(tool.NameESMMigration, func() (core.Tool, error) {
		return tool.NewESMMigration()
	}))
	regs = append(regs, optionalRegistration(tool.NameNativeMigrator, func() (core.Tool, error) {
		return tool.NewNativeMigrator()
	}))

	return regs
}

// optionalRegistration probes the constructor once. On success the real
// constructor backs the factory; on failure a placeholder factory is
// substituted whose invocation yields a structured "unavailable" payload
// rather than an error.
func optionalRegistration(name string, construct func() (core.Tool, error)) Registration {
	if _, err := construct(); err != nil {
		reason := err.Error()
		return Registration{
			Name: name,
			Factory: func() core.Tool {
				return tool.NewUnavailable(name, reason)
			},
			Stub: true,
		}
	}
	return Registration{
		Name: name,
		Factory: func() core.Tool {
			t, err := construct()
			if err != nil {
				// The probe succeeded, so a later failure means the
				// environment changed mid-process; degrade the same way.
				return tool.NewUnavailable(name, err.Error())
			}
			return t
		},
	}
}
