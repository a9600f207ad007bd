package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"plugreg/internal/db"
	"plugreg/internal/models"
)

func writeDescriptorFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "descriptor.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write descriptor file: %v", err)
	}
	return path
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewManager(database, nil, zerolog.Nop())
}

func seedUser(t *testing.T, m *Manager, username string) models.User {
	t.Helper()

	user := models.User{ID: uuid.New(), Username: username, Email: username + "@babymri.org"}
	if err := m.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func addSimpleFSApp(t *testing.T, m *Manager) models.Plugin {
	t.Helper()

	plugin, err := m.Add(context.Background(), AddParams{
		Name:           "simplefsapp",
		Owner:          "cube",
		PublicRepo:     "https://github.com/x/simplefsapp",
		DockerImage:    "fnndsc/simplefsapp",
		DescriptorJSON: `{"version": "1.0"}`,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return plugin
}

func TestAddExtractsVersionFromDescriptor(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")

	plugin := addSimpleFSApp(t, m)

	if plugin.Version != "1.0" {
		t.Fatalf("Add() version = %q, want %q", plugin.Version, "1.0")
	}
	if plugin.DescriptorName != "simplefsapp.json" {
		t.Fatalf("Add() descriptor name = %q, want %q", plugin.DescriptorName, "simplefsapp.json")
	}
	if len(plugin.Owners) != 1 || plugin.Owners[0].Username != "cube" {
		t.Fatalf("Add() owners = %v, want single owner cube", plugin.Owners)
	}
	if plugin.CreatedAt.IsZero() {
		t.Fatal("Add() creation date not set")
	}
}

func TestAddFromDescriptorFile(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")

	path := writeDescriptorFile(t, `{"version": "0.2.1", "type": "ds"}`)
	plugin, err := m.Add(context.Background(), AddParams{
		Name:           "simpledsapp",
		Owner:          "cube",
		PublicRepo:     "https://github.com/x/simpledsapp",
		DockerImage:    "fnndsc/simpledsapp",
		DescriptorFile: path,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if plugin.Version != "0.2.1" {
		t.Fatalf("Add() version = %q, want %q", plugin.Version, "0.2.1")
	}
	if plugin.DescriptorName != path {
		t.Fatalf("Add() descriptor name = %q, want %q", plugin.DescriptorName, path)
	}
}

func TestAddOwnerNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Add(context.Background(), AddParams{
		Name:           "simplefsapp",
		Owner:          "nobody",
		PublicRepo:     "https://github.com/x/simplefsapp",
		DockerImage:    "fnndsc/simplefsapp",
		DescriptorJSON: `{"version": "1.0"}`,
	})
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("Add() error = %v, want ErrOwnerNotFound", err)
	}

	var count int64
	if err := m.db.Model(&models.Plugin{}).Count(&count).Error; err != nil {
		t.Fatalf("count plugins: %v", err)
	}
	if count != 0 {
		t.Fatalf("plugin count = %d, want 0", count)
	}
}

func TestAddDuplicateName(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	addSimpleFSApp(t, m)

	_, err := m.Add(context.Background(), AddParams{
		Name:           "simplefsapp",
		Owner:          "cube",
		PublicRepo:     "https://github.com/y/simplefsapp",
		DockerImage:    "other/simplefsapp",
		DescriptorJSON: `{"version": "2.0"}`,
	})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Add() error = %v, want ErrDuplicateName", err)
	}
}

func TestAddRejectsBadDescriptors(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")

	tests := []struct {
		name   string
		inline string
	}{
		{"malformed json", `{"version"`},
		{"missing version", `{"type": "fs"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Add(context.Background(), AddParams{
				Name:           "simplefsapp",
				Owner:          "cube",
				PublicRepo:     "https://github.com/x/simplefsapp",
				DockerImage:    "fnndsc/simplefsapp",
				DescriptorJSON: tt.inline,
			})
			if err == nil {
				t.Fatal("Add() error = nil, want error")
			}
		})
	}
}

func TestAddValidatesRequiredFields(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")

	_, err := m.Add(context.Background(), AddParams{
		Name:           "simplefsapp",
		Owner:          "cube",
		PublicRepo:     "",
		DockerImage:    "fnndsc/simplefsapp",
		DescriptorJSON: `{"version": "1.0"}`,
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Add() error = %v, want *ValidationError", err)
	}
	if verr.Field != "public_repo" {
		t.Fatalf("ValidationError field = %q, want %q", verr.Field, "public_repo")
	}
}

func TestModifyUpdatesFieldsAndStampsDate(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	plugin := addSimpleFSApp(t, m)

	time.Sleep(10 * time.Millisecond)

	modified, err := m.Modify(context.Background(), plugin.ID,
		"https://github.com/y/simplefsapp", "fnndsc/simplefsapp:2", "")
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}

	if modified.PublicRepo != "https://github.com/y/simplefsapp" {
		t.Fatalf("Modify() public repo = %q", modified.PublicRepo)
	}
	if modified.DockerImage != "fnndsc/simplefsapp:2" {
		t.Fatalf("Modify() docker image = %q", modified.DockerImage)
	}
	if modified.Name != plugin.Name || modified.Version != plugin.Version {
		t.Fatalf("Modify() changed carried-forward fields: name %q version %q",
			modified.Name, modified.Version)
	}
	if string(modified.Descriptor) != string(plugin.Descriptor) {
		t.Fatal("Modify() changed descriptor content")
	}
	if !modified.UpdatedAt.After(plugin.UpdatedAt) {
		t.Fatalf("Modify() modification date %v not after %v",
			modified.UpdatedAt, plugin.UpdatedAt)
	}
}

func TestModifyAppendsNewOwner(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	seedUser(t, m, "another")
	plugin := addSimpleFSApp(t, m)

	modified, err := m.Modify(context.Background(), plugin.ID,
		plugin.PublicRepo, plugin.DockerImage, "another")
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}

	if len(modified.Owners) != 2 {
		t.Fatalf("Modify() owner count = %d, want 2", len(modified.Owners))
	}
	if !hasOwner(modified, "cube") || !hasOwner(modified, "another") {
		t.Fatalf("Modify() owners = %v, want cube and another", modified.Owners)
	}
}

func TestModifyExistingOwnerIsNoOp(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	plugin := addSimpleFSApp(t, m)

	modified, err := m.Modify(context.Background(), plugin.ID,
		plugin.PublicRepo, plugin.DockerImage, "cube")
	if err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if len(modified.Owners) != 1 {
		t.Fatalf("Modify() owner count = %d, want 1", len(modified.Owners))
	}
}

func TestModifyUnknownOwner(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	plugin := addSimpleFSApp(t, m)

	_, err := m.Modify(context.Background(), plugin.ID,
		plugin.PublicRepo, plugin.DockerImage, "nobody")
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("Modify() error = %v, want ErrOwnerNotFound", err)
	}
}

func TestModifyNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Modify(context.Background(), uuid.New(),
		"https://github.com/x/simplefsapp", "fnndsc/simplefsapp", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Modify() error = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	plugin := addSimpleFSApp(t, m)

	if err := m.Remove(context.Background(), plugin.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := m.pluginByID(context.Background(), plugin.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pluginByID() after remove error = %v, want ErrNotFound", err)
	}

	var owners int64
	err := m.db.Model(&models.PluginOwner{}).
		Where("plugin_id = ?", plugin.ID).
		Count(&owners).Error
	if err != nil {
		t.Fatalf("count owner rows: %v", err)
	}
	if owners != 0 {
		t.Fatalf("owner rows after remove = %d, want 0", owners)
	}
}

func TestRemoveNotFound(t *testing.T) {
	m := newTestManager(t)

	if err := m.Remove(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	m := newTestManager(t)
	seedUser(t, m, "cube")
	addSimpleFSApp(t, m)

	_, err := m.Add(context.Background(), AddParams{
		Name:           "simpledsapp",
		Owner:          "cube",
		PublicRepo:     "https://github.com/x/simpledsapp",
		DockerImage:    "fnndsc/simpledsapp",
		DescriptorJSON: `{"version": "0.1"}`,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	plugins, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(plugins) != 2 {
		t.Fatalf("List() count = %d, want 2", len(plugins))
	}
	for _, p := range plugins {
		if len(p.Owners) == 0 {
			t.Fatalf("List() plugin %s has no owners preloaded", p.Name)
		}
	}
}
