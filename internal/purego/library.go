package purego

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ebitengine/purego"
)

// LibDirEnv names the environment variable that points at the directory
// holding the DuckDB shared library (e.g. a Nix store path).
const LibDirEnv = "DUCKDB_LIB_DIR"

// libraryName returns the platform file name of the DuckDB shared library
func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libduckdb.dylib"
	case "windows":
		return "duckdb.dll"
	default: // linux, *bsd, etc
		return "libduckdb.so"
	}
}

// Library represents a loaded DuckDB shared library
type Library struct {
	handle uintptr
	path   string
}

// candidates lists the locations tried by LoadLibrary, most specific first.
func candidates(libDir string) []string {
	var names []string
	if libDir != "" {
		names = append(names, filepath.Join(libDir, libraryName()))
	}
	if envDir := os.Getenv(LibDirEnv); envDir != "" && envDir != libDir {
		names = append(names, filepath.Join(envDir, libraryName()))
	}
	return append(names, libraryName())
}

// LoadLibrary loads the DuckDB shared library. libDir may be empty, in which
// case DUCKDB_LIB_DIR and then the system loader path are used.
func LoadLibrary(libDir string) (*Library, error) {
	var lastErr error
	for _, name := range candidates(libDir) {
		handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			log.Printf("[DEBUG] loaded duckdb library from %s", name)
			return &Library{handle: handle, path: name}, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to load DuckDB library from any location: %w", lastErr)
}

// Path returns the location the library was loaded from
func (l *Library) Path() string {
	return l.path
}

// Close closes the loaded library
func (l *Library) Close() error {
	if l.handle != 0 {
		return purego.Dlclose(l.handle)
	}
	return nil
}

// RegisterFunc binds fn to the exported library symbol name
func (l *Library) RegisterFunc(fn interface{}, name string) (err error) {
	// RegisterLibFunc panics on a missing symbol, older libraries lack the
	// table function API
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to register %s: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fn, l.handle, name)
	return nil
}
