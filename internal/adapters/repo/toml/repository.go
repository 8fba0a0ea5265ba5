package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName         = "config"
	configType         = "toml"
	projectionPathKey  = "projection.path"
	projectionFileMode = 0o600
	projectionDirMode  = 0o700
	ConfigDir          = ".squarelink"
	projectionFile     = "projection.toml"
	tempFilePattern    = ".projection-*.toml.tmp"
)

// ProjectionRepository keeps the last confirmed connection view in a TOML
// file so it can be shown without reaching the account service.
type ProjectionRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ProjectionRepository = (*ProjectionRepository)(nil)

// NewProjectionRepository resolves the file path from ~/.squarelink/config.toml
// (key projection.path), falling back to ~/.squarelink/projection.toml.
func NewProjectionRepository(cfg *viper.Viper) (*ProjectionRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, ConfigDir))
	cfg.SetDefault(projectionPathKey, filepath.Join(homeDir, ConfigDir, projectionFile))

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	path := cfg.GetString(projectionPathKey)
	if path == "" {
		return nil, errors.New("projection path is empty")
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &ProjectionRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ProjectionRepository) Path() string {
	return r.path
}

func (r *ProjectionRepository) Load(ctx context.Context) (ports.Projection, error) {
	if err := ctx.Err(); err != nil {
		return ports.Projection{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.Projection{}, domain.ErrProjectionNotFound
		}
		return ports.Projection{}, fmt.Errorf("read projection file: %w", err)
	}

	var file projectionFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return ports.Projection{}, fmt.Errorf("decode projection file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return ports.Projection{}, err
	}

	return fromSchema(file), nil
}

func (r *ProjectionRepository) Save(ctx context.Context, projection ports.Projection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeSchema(toSchema(projection))
}

func (r *ProjectionRepository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove projection file: %w", err)
	}
	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve projection path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *ProjectionRepository) writeSchema(file projectionFileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), projectionDirMode); err != nil {
		return fmt.Errorf("create projection directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode projection file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp projection file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp projection file: %w", err)
	}
	if err := tempFile.Chmod(projectionFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp projection file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp projection file: %w", err)
	}
	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace projection file: %w", err)
	}
	cleanup = false

	return nil
}

func toSchema(projection ports.Projection) projectionFileSchema {
	file := projectionFileSchema{
		Version:       currentSchemaVersion,
		CapturedAt:    formatTime(projection.CapturedAt),
		IdentityEmail: projection.IdentityEmail,
		BusinessID:    projection.BusinessID,
	}

	if c := projection.Connection; c != nil {
		file.Connection = &connectionSchema{
			ID:                      c.ID,
			Name:                    c.Name,
			Status:                  c.Status,
			Reason:                  c.Reason,
			Currency:                c.Currency,
			Mode:                    c.Mode,
			MerchantID:              c.MerchantID,
			ProductionApplicationID: c.ProductionApplicationID,
			SandboxApplicationID:    c.SandboxApplicationID,
			ProductionLocationID:    c.ProductionLocationID,
			SandboxLocationID:       c.SandboxLocationID,
			InstructionLink:         c.InstructionLink,
			CreatedAt:               c.CreatedAt,
		}
	}

	for _, l := range projection.Locations {
		entry := locationSchema{
			ID:           l.ID,
			Name:         l.Name,
			BusinessName: l.BusinessName,
			Status:       l.Status,
			Currency:     l.Currency,
			Timezone:     l.Timezone,
			Country:      l.Country,
			MCC:          l.MCC,
			Capabilities: l.Capabilities,
		}
		if l.Address != nil {
			entry.HasAddress = true
			entry.AddressLine1 = l.Address.Line1
			entry.AddressLine2 = l.Address.Line2
			entry.Locality = l.Address.Locality
			entry.PostalCode = l.Address.PostalCode
			entry.AddressCountry = l.Address.Country
		}
		file.Locations = append(file.Locations, entry)
	}

	if data := projection.Subscriptions; data != nil {
		subscriptions := &subscriptionDataSchema{}
		for _, p := range data.Plans {
			subscriptions.Plans = append(subscriptions.Plans, planSchema{
				ID:         p.ID,
				ObjectID:   p.ObjectID,
				Name:       p.Name,
				Status:     p.Status,
				BusinessID: p.BusinessID,
			})
		}
		for _, v := range data.Variations {
			subscriptions.Variations = append(subscriptions.Variations, variationSchema{
				ID:            v.ID,
				PlanID:        v.PlanID,
				Name:          v.Name,
				Type:          v.Type,
				Cadence:       v.Cadence,
				Amount:        v.Amount,
				Credit:        v.Credit,
				TaxPercentage: v.TaxPercentage,
				Status:        v.Status,
			})
		}
		file.Subscriptions = subscriptions
	}

	return file
}

func fromSchema(file projectionFileSchema) ports.Projection {
	projection := ports.Projection{
		IdentityEmail: file.IdentityEmail,
		BusinessID:    file.BusinessID,
		CapturedAt:    parseTime(file.CapturedAt),
	}

	if c := file.Connection; c != nil {
		projection.Connection = &domain.Connection{
			ID:                      c.ID,
			Name:                    c.Name,
			Status:                  c.Status,
			Reason:                  c.Reason,
			Currency:                c.Currency,
			Mode:                    c.Mode,
			MerchantID:              c.MerchantID,
			ProductionApplicationID: c.ProductionApplicationID,
			SandboxApplicationID:    c.SandboxApplicationID,
			ProductionLocationID:    c.ProductionLocationID,
			SandboxLocationID:       c.SandboxLocationID,
			InstructionLink:         c.InstructionLink,
			CreatedAt:               c.CreatedAt,
		}
	}

	for _, l := range file.Locations {
		location := domain.Location{
			ID:           l.ID,
			Name:         l.Name,
			BusinessName: l.BusinessName,
			Status:       l.Status,
			Currency:     l.Currency,
			Timezone:     l.Timezone,
			Country:      l.Country,
			MCC:          l.MCC,
			Capabilities: l.Capabilities,
		}
		if l.HasAddress {
			location.Address = &domain.Address{
				Line1:      l.AddressLine1,
				Line2:      l.AddressLine2,
				Locality:   l.Locality,
				PostalCode: l.PostalCode,
				Country:    l.AddressCountry,
			}
		}
		projection.Locations = append(projection.Locations, location)
	}

	if s := file.Subscriptions; s != nil {
		data := &domain.SubscriptionData{
			Plans:      make([]domain.Plan, 0, len(s.Plans)),
			Variations: make([]domain.PlanVariation, 0, len(s.Variations)),
		}
		for _, p := range s.Plans {
			data.Plans = append(data.Plans, domain.Plan{
				ID:         p.ID,
				ObjectID:   p.ObjectID,
				Name:       p.Name,
				Status:     p.Status,
				BusinessID: p.BusinessID,
			})
		}
		for _, v := range s.Variations {
			data.Variations = append(data.Variations, domain.PlanVariation{
				ID:            v.ID,
				PlanID:        v.PlanID,
				Name:          v.Name,
				Type:          v.Type,
				Cadence:       v.Cadence,
				Amount:        v.Amount,
				Credit:        v.Credit,
				TaxPercentage: v.TaxPercentage,
				Status:        v.Status,
			})
		}
		projection.Subscriptions = data
	}

	return projection
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
