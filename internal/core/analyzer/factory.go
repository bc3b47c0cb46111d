package analyzer

import (
	"net/http"
	"sync"

	"github.com/pkgmeta/repometa/internal/core"
)

// Factory maps ecosystems to analyzers.
type Factory struct {
	mu        sync.RWMutex
	analyzers map[core.RepositoryType]Analyzer
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{analyzers: make(map[core.RepositoryType]Analyzer)}
}

// NewDefaultFactory registers every built-in analyzer sharing one client. A
// nil client gets one without a timeout; per-call deadlines come from the
// request context.
func NewDefaultFactory(client *http.Client, userAgent string) *Factory {
	if client == nil {
		client = &http.Client{}
	}
	base := Base{Client: client, UserAgent: userAgent}
	f := NewFactory()
	f.Register(&MavenAnalyzer{Base: base})
	f.Register(&NPMAnalyzer{Base: base})
	f.Register(&PyPIAnalyzer{Base: base})
	f.Register(&GoModulesAnalyzer{Base: base})
	f.Register(&CargoAnalyzer{Base: base})
	f.Register(&NuGetAnalyzer{Base: base})
	f.Register(&GemAnalyzer{Base: base})
	f.Register(&ComposerAnalyzer{Base: base})
	return f
}

// Register adds or replaces the analyzer for its ecosystem.
func (f *Factory) Register(a Analyzer) {
	if f == nil || a == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzers == nil {
		f.analyzers = make(map[core.RepositoryType]Analyzer)
	}
	f.analyzers[a.Type()] = a
}

// Get returns the analyzer for an ecosystem. Unsupported types are absent.
func (f *Factory) Get(t core.RepositoryType) (Analyzer, bool) {
	if f == nil || t == core.RepositoryTypeUnsupported {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.analyzers[t]
	return a, ok
}

// Types lists the registered ecosystems in a stable order.
func (f *Factory) Types() []core.RepositoryType {
	out := make([]core.RepositoryType, 0, len(core.RepositoryTypes()))
	for _, t := range core.RepositoryTypes() {
		if _, ok := f.Get(t); ok {
			out = append(out, t)
		}
	}
	return out
}
