package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plugreg/internal/descriptor"
	"plugreg/internal/models"
	"plugreg/pkg/bus"
)

const (
	addedSubject    = "plugins.added"
	modifiedSubject = "plugins.modified"
	removedSubject  = "plugins.removed"
)

// Manager drives the add/modify/remove workflow against the plugin store.
type Manager struct {
	db  *gorm.DB
	bus *bus.Bus
	log zerolog.Logger
}

// NewManager wires a Manager to the given database handle. The event bus is
// optional; a nil bus disables publishing.
func NewManager(database *gorm.DB, eventBus *bus.Bus, log zerolog.Logger) *Manager {
	return &Manager{db: database, bus: eventBus, log: log}
}

// AddParams carries the arguments of the add operation. Exactly one of
// DescriptorFile and DescriptorJSON must be set.
type AddParams struct {
	Name           string
	Owner          string
	PublicRepo     string
	DockerImage    string
	DescriptorFile string
	DescriptorJSON string
}

// Add registers a new plugin owned by the named user. The plugin version is
// extracted from the descriptor and required to be present.
func (m *Manager) Add(ctx context.Context, p AddParams) (models.Plugin, error) {
	blob, version, err := descriptor.Resolve(p.Name, p.DescriptorFile, p.DescriptorJSON)
	if err != nil {
		return models.Plugin{}, err
	}

	candidate := Candidate{
		Name:           p.Name,
		PublicRepo:     p.PublicRepo,
		DockerImage:    p.DockerImage,
		DescriptorName: blob.Name,
		Descriptor:     blob.Data,
		Version:        version,
	}
	if err := candidate.Validate(); err != nil {
		return models.Plugin{}, err
	}

	owner, err := m.userByUsername(ctx, p.Owner)
	if err != nil {
		return models.Plugin{}, err
	}

	plugin := models.Plugin{
		ID:             uuid.New(),
		Name:           candidate.Name,
		PublicRepo:     candidate.PublicRepo,
		DockerImage:    candidate.DockerImage,
		DescriptorName: candidate.DescriptorName,
		Descriptor:     datatypes.JSON(candidate.Descriptor),
		Version:        candidate.Version,
		Owners:         []models.User{owner},
	}
	if err := m.db.WithContext(ctx).Create(&plugin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Plugin{}, ErrDuplicateName
		}
		return models.Plugin{}, err
	}

	m.log.Info().
		Str("plugin_id", plugin.ID.String()).
		Str("name", plugin.Name).
		Str("version", plugin.Version).
		Msg("plugin added")
	m.publish(ctx, addedSubject, map[string]any{
		"plugin_id": plugin.ID,
		"name":      plugin.Name,
		"version":   plugin.Version,
	})
	return plugin, nil
}

// Modify updates an existing plugin's public repo and docker image, stamps a
// new modification time, and optionally appends a new owner. Name, descriptor
// and version are carried forward unmodified. Naming a user that already owns
// the plugin is a no-op.
func (m *Manager) Modify(ctx context.Context, id uuid.UUID, publicRepo, dockerImage, newOwner string) (models.Plugin, error) {
	plugin, err := m.pluginByID(ctx, id)
	if err != nil {
		return models.Plugin{}, err
	}

	candidate := Candidate{
		Name:           plugin.Name,
		PublicRepo:     publicRepo,
		DockerImage:    dockerImage,
		DescriptorName: plugin.DescriptorName,
		Descriptor:     []byte(plugin.Descriptor),
		Version:        plugin.Version,
	}
	if err := candidate.Validate(); err != nil {
		return models.Plugin{}, err
	}

	updates := map[string]any{
		"public_repo":  candidate.PublicRepo,
		"docker_image": candidate.DockerImage,
		"updated_at":   time.Now().UTC(),
	}
	if err := m.db.WithContext(ctx).Model(&plugin).Updates(updates).Error; err != nil {
		return models.Plugin{}, err
	}

	if newOwner != "" && !hasOwner(plugin, newOwner) {
		owner, err := m.userByUsername(ctx, newOwner)
		if err != nil {
			return models.Plugin{}, err
		}
		if err := m.db.WithContext(ctx).Model(&plugin).Association("Owners").Append(&owner); err != nil {
			return models.Plugin{}, err
		}
	}

	refreshed, err := m.pluginByID(ctx, id)
	if err != nil {
		return models.Plugin{}, err
	}

	m.log.Info().
		Str("plugin_id", refreshed.ID.String()).
		Str("name", refreshed.Name).
		Msg("plugin modified")
	m.publish(ctx, modifiedSubject, map[string]any{
		"plugin_id": refreshed.ID,
		"name":      refreshed.Name,
	})
	return refreshed, nil
}

// Remove deletes a registered plugin and its owner associations.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	plugin, err := m.pluginByID(ctx, id)
	if err != nil {
		return err
	}

	if err := m.db.WithContext(ctx).Select(clause.Associations).Delete(&plugin).Error; err != nil {
		return err
	}

	m.log.Info().
		Str("plugin_id", plugin.ID.String()).
		Str("name", plugin.Name).
		Msg("plugin removed")
	m.publish(ctx, removedSubject, map[string]any{
		"plugin_id": plugin.ID,
		"name":      plugin.Name,
	})
	return nil
}

// List returns all registered plugins with their owners, newest first.
func (m *Manager) List(ctx context.Context) ([]models.Plugin, error) {
	var plugins []models.Plugin
	err := m.db.WithContext(ctx).
		Preload("Owners").
		Order("created_at DESC").
		Find(&plugins).Error
	if err != nil {
		return nil, err
	}
	return plugins, nil
}

func (m *Manager) pluginByID(ctx context.Context, id uuid.UUID) (models.Plugin, error) {
	var plugin models.Plugin
	err := m.db.WithContext(ctx).Preload("Owners").First(&plugin, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.Plugin{}, ErrNotFound
	case err != nil:
		return models.Plugin{}, err
	}
	return plugin, nil
}

func (m *Manager) userByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := m.db.WithContext(ctx).First(&user, "username = ?", username).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.User{}, ErrOwnerNotFound
	case err != nil:
		return models.User{}, err
	}
	return user, nil
}

func hasOwner(plugin models.Plugin, username string) bool {
	for _, owner := range plugin.Owners {
		if owner.Username == username {
			return true
		}
	}
	return false
}

func (m *Manager) publish(ctx context.Context, subject string, payload map[string]any) {
	if m.bus == nil || subject == "" {
		return
	}
	if err := m.bus.Publish(ctx, subject, payload); err != nil {
		m.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}
