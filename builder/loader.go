package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/simon020286/continuation-router/adddecimals"
	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/models"
	"github.com/simon020286/continuation-router/venues/scriptswap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrVenueNotFound = errors.New("venue not found")
	ErrVenueKind     = errors.New("venue does not support this action")
)

// AccountReader is what venue construction needs from the ledger
type AccountReader interface {
	Account(key models.Key) (models.TokenAccount, error)
	Mint(key models.Key) (models.Mint, error)
}

// VenueRegistry maintains venue definitions and the venues built from them
type VenueRegistry struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	definitions map[string]*config.VenueDefinition
	stableSwaps map[string]models.StableSwap
	passThrough map[string]models.PassThroughProcessor
}

var _ VenueResolver = (*VenueRegistry)(nil)

// NewVenueRegistry creates a new registry
func NewVenueRegistry(logger *zap.Logger) *VenueRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueRegistry{
		logger:      logger,
		definitions: make(map[string]*config.VenueDefinition),
		stableSwaps: make(map[string]models.StableSwap),
		passThrough: make(map[string]models.PassThroughProcessor),
	}
}

// Register registers a venue definition. A later definition with the same
// name replaces the earlier one.
func (vr *VenueRegistry) Register(def *config.VenueDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid venue definition: %w", err)
	}
	vr.mu.Lock()
	defer vr.mu.Unlock()
	vr.definitions[def.Name] = def
	return nil
}

// Get returns a venue definition by name
func (vr *VenueRegistry) Get(name string) (*config.VenueDefinition, bool) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	def, exists := vr.definitions[name]
	return def, exists
}

// List returns all registered definition names, sorted
func (vr *VenueRegistry) List() []string {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	names := make([]string, 0, len(vr.definitions))
	for name := range vr.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered definitions
func (vr *VenueRegistry) Count() int {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	return len(vr.definitions)
}

// Build constructs a venue for every registered definition against the
// accounts in r
func (vr *VenueRegistry) Build(r AccountReader) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	names := make([]string, 0, len(vr.definitions))
	for name := range vr.definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := vr.definitions[name]
		switch def.Kind {
		case config.VenueScriptSwap:
			pool, err := scriptswap.New(r, def.Name, scriptswap.Config{
				Authority: def.Pool.Authority,
				ReserveA:  def.Pool.ReserveA,
				ReserveB:  def.Pool.ReserveB,
				LPMint:    def.Pool.LPMint,
				Curves: scriptswap.Curves{
					Swap:        def.Pool.Curves.Swap,
					Deposit:     def.Pool.Curves.Deposit,
					WithdrawOne: def.Pool.Curves.WithdrawOne,
				},
			})
			if err != nil {
				return fmt.Errorf("venue %s: %w", name, err)
			}
			vr.stableSwaps[name] = pool
		case config.VenueAddDecimals:
			wrapper, err := adddecimals.New(r, adddecimals.Config{
				Authority:      def.Wrapper.Authority,
				UnderlyingMint: def.Wrapper.UnderlyingMint,
				WrappedMint:    def.Wrapper.WrappedMint,
				Vault:          def.Wrapper.Vault,
			})
			if err != nil {
				return fmt.Errorf("venue %s: %w", name, err)
			}
			vr.passThrough[name] = wrapper
		}
		vr.logger.Debug("venue built", zap.String("venue", name), zap.String("kind", string(def.Kind)))
	}
	return nil
}

// StableSwap resolves a pool venue
func (vr *VenueRegistry) StableSwap(name string) (models.StableSwap, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	if venue, ok := vr.stableSwaps[name]; ok {
		return venue, nil
	}
	if _, ok := vr.passThrough[name]; ok {
		return nil, fmt.Errorf("%w: %s is a pass-through venue", ErrVenueKind, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, name)
}

// PassThrough resolves a pass-through venue
func (vr *VenueRegistry) PassThrough(name string) (models.PassThroughProcessor, error) {
	vr.mu.RLock()
	defer vr.mu.RUnlock()
	if venue, ok := vr.passThrough[name]; ok {
		return venue, nil
	}
	if _, ok := vr.stableSwaps[name]; ok {
		return nil, fmt.Errorf("%w: %s is a pool venue", ErrVenueKind, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, name)
}

// LoadFromEmbed loads venue definitions from an embedded filesystem
func (vr *VenueRegistry) LoadFromEmbed(fsys fs.FS, basePath string) error {
	entries, err := fs.ReadDir(fsys, basePath)
	if err != nil {
		return fmt.Errorf("failed to read embedded venues directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		filePath := filepath.ToSlash(filepath.Join(basePath, entry.Name()))
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", filePath, err)
		}

		if err := vr.loadFromBytes(data, entry.Name()); err != nil {
			return fmt.Errorf("failed to load embedded venue %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// LoadFromDirectory loads venue definitions from a directory. A missing
// directory is not an error; files that fail to parse are skipped.
func (vr *VenueRegistry) LoadFromDirectory(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read venues directory %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", filePath, err)
		}

		if err := vr.loadFromBytes(data, entry.Name()); err != nil {
			vr.logger.Warn("skipping venue file", zap.String("file", filePath), zap.Error(err))
			continue
		}
	}

	return nil
}

// loadFromBytes loads a venue definition from bytes
func (vr *VenueRegistry) loadFromBytes(data []byte, filename string) error {
	var def config.VenueDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// If name is not specified, use the filename
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	return vr.Register(&def)
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
