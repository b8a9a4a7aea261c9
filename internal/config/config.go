package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models permitflow.yml: the permit categories, the fixed
// safety-control catalogue, the suggested vocabularies for the free-form
// sets, validation bounds and role permissions.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Categories []string `yaml:"categories"`
	Validation struct {
		WorkDescription struct {
			Min int `yaml:"min"`
			Max int `yaml:"max"`
		} `yaml:"work_description"`
	} `yaml:"validation"`
	SafetyControls []CatalogueEntry `yaml:"safety_controls"`
	Suggestions    struct {
		Risks []string `yaml:"risks"`
		Tools []string `yaml:"tools"`
		PPE   []string `yaml:"ppe"`
	} `yaml:"suggestions"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig declares an outbound event delivery target. An empty Events
// list subscribes to every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// CatalogueEntry is one entry of the fixed safety-control checklist. The item
// label is the entry's identity.
type CatalogueEntry struct {
	Item        string `yaml:"item"`
	Description string `yaml:"description,omitempty"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// CatalogueItems returns the ordered item labels of the checklist.
func (c *Config) CatalogueItems() []string {
	items := make([]string, 0, len(c.SafetyControls))
	for _, e := range c.SafetyControls {
		items = append(items, e.Item)
	}
	return items
}

// RolePermissions flattens the permissions of the given roles.
func (c *Config) RolePermissions(roles []string) []string {
	var perms []string
	for _, r := range roles {
		role, ok := c.RBAC.Roles[r]
		if !ok {
			continue
		}
		perms = append(perms, role.Permissions...)
	}
	return perms
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with pf config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("config.categories is required")
	}
	for _, cat := range c.Categories {
		if cat == "" {
			return fmt.Errorf("config.categories contains empty category code")
		}
	}
	if len(c.SafetyControls) == 0 {
		return fmt.Errorf("config.safety_controls is required")
	}
	seen := map[string]bool{}
	for _, e := range c.SafetyControls {
		if e.Item == "" {
			return fmt.Errorf("config.safety_controls contains entry with empty item")
		}
		if seen[e.Item] {
			return fmt.Errorf("duplicate safety control item %q", e.Item)
		}
		seen[e.Item] = true
	}
	min := c.Validation.WorkDescription.Min
	max := c.Validation.WorkDescription.Max
	if min <= 0 || max <= 0 || min >= max {
		return fmt.Errorf("config.validation.work_description bounds invalid (min=%d max=%d)", min, max)
	}
	for roleID, role := range c.RBAC.Roles {
		if roleID == "" {
			return fmt.Errorf("config.rbac.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "permitflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(serviceName string) string {
	return fmt.Sprintf(defaultTemplate, serviceName)
}

// Default returns the default Config struct.
func Default(serviceName string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, serviceName))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `service:
  name: %s

categories:
  - electrico
  - mecanico
  - trabajo_altura
  - espacios_confinados
  - soldadura
  - excavacion
  - general

validation:
  work_description:
    min: 10
    max: 500

safety_controls:
  - item: "Bloqueo y Etiquetado (LOTO)"
    description: "Aislamiento de fuentes de energía"
  - item: "Entrada a Espacios Confinados"
    description: "Permiso y monitoreo de atmósfera"
  - item: "Trabajo en Caliente"
    description: "Vigía de incendio y extintores"
  - item: "Protección contra Caídas"
    description: "Arnés y línea de vida certificados"
  - item: "Ventilación Forzada"
  - item: "Delimitación y Señalización del Área"
  - item: "Supervisión Permanente"
  - item: "Verificación de Equipos y Herramientas"

suggestions:
  risks:
    - "Riesgo eléctrico"
    - "Caída de altura"
    - "Atrapamiento"
    - "Atmósfera peligrosa"
    - "Proyección de partículas"
    - "Incendio o explosión"
    - "Contacto con sustancias químicas"
    - "Otros (especificar)"
  tools:
    - "Multímetro"
    - "Taladro"
    - "Esmeril angular"
    - "Equipo de soldadura"
    - "Andamios"
    - "Escalera dieléctrica"
    - "Herramientas manuales"
    - "Otros (especificar)"
  ppe:
    - "Casco"
    - "Gafas de seguridad"
    - "Guantes dieléctricos"
    - "Botas de seguridad"
    - "Arnés de cuerpo completo"
    - "Protección auditiva"
    - "Respirador"

rbac:
  roles:
    admin:
      description: "Full access including directory management"
      permissions: [permit.author, permit.read, directory.write, template.write]
    supervisor:
      description: "Authors and reviews permits"
      permissions: [permit.author, permit.read]
    viewer:
      description: "Read-only access"
      permissions: [permit.read]
`
