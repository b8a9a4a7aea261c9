package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"permitflow/internal/app"
	"permitflow/internal/config"
	"permitflow/internal/db"
	"permitflow/internal/domain"
	"permitflow/internal/engine"
	"permitflow/internal/repo"
	"permitflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pf",
	Short: "Permitflow CLI",
	Long: `Permitflow authors work permits through a guided six-step workflow.
- Workspace: the .permitflow directory holding the SQLite database; the
  catalogue and validation rules live in permitflow.yml next to it.
- Directory: contracting companies, their contractors and approval
  departments, plus the auxiliary form catalogue. Seed it from YAML.
- Templates: reusable presets per work category; applying one pre-fills
  the draft and marks the matching safety controls.
- Sessions: server-side drafts that advance step by step; each step must
  validate before the next one opens.
- Permits: submitted drafts, assembled into the canonical payload and
  recorded in the event log ('pf log tail').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PERMITFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(directoryCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(permitCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default permitflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "permitflow", "service name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return printJSONOrDump(a.Config)
			})
		},
	}
	return cmd
}

// seedFile is the YAML shape accepted by 'pf directory seed'.
type seedFile struct {
	Companies []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Contractors []struct {
			ID       string `yaml:"id"`
			FullName string `yaml:"full_name"`
			Cedula   string `yaml:"cedula"`
			Status   string `yaml:"status"`
		} `yaml:"contractors"`
		Departments []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
			Code string `yaml:"code"`
		} `yaml:"departments"`
	} `yaml:"companies"`
	Forms []struct {
		ID               string           `yaml:"id"`
		Name             string           `yaml:"name"`
		Description      string           `yaml:"description"`
		EstimatedMinutes int              `yaml:"estimated_minutes"`
		Sections         []map[string]any `yaml:"sections"`
		IsActive         *bool            `yaml:"is_active"`
	} `yaml:"forms"`
}

func directoryCmd() *cobra.Command {
	dir := &cobra.Command{Use: "directory", Short: "Manage the company and form directory"}
	dir.AddCommand(directorySeedCmd())
	dir.AddCommand(directoryCompaniesCmd())
	dir.AddCommand(directoryContractorsCmd())
	dir.AddCommand(directoryDepartmentsCmd())
	dir.AddCommand(directoryFormsCmd())
	return dir
}

func directorySeedCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed companies, contractors, departments and forms from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var seed seedFile
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				for _, c := range seed.Companies {
					id := c.ID
					if id == "" {
						id = uuid.NewString()
					}
					if err := r.InsertCompany(ctx, domain.Company{ID: id, Name: c.Name, CreatedAt: now}); err != nil {
						return fmt.Errorf("company %s: %w", c.Name, err)
					}
					for _, ct := range c.Contractors {
						status := ct.Status
						if status == "" {
							status = "active"
						}
						cid := ct.ID
						if cid == "" {
							cid = uuid.NewString()
						}
						if err := r.InsertContractor(ctx, domain.Contractor{
							ID: cid, CompanyID: id, FullName: ct.FullName, Cedula: ct.Cedula, Status: status, CreatedAt: now,
						}); err != nil {
							return fmt.Errorf("contractor %s: %w", ct.FullName, err)
						}
					}
					for _, dp := range c.Departments {
						did := dp.ID
						if did == "" {
							did = uuid.NewString()
						}
						if err := r.InsertDepartment(ctx, domain.Department{
							ID: did, CompanyID: id, Name: dp.Name, Code: dp.Code, CreatedAt: now,
						}); err != nil {
							return fmt.Errorf("department %s: %w", dp.Name, err)
						}
					}
				}
				for _, f := range seed.Forms {
					fid := f.ID
					if fid == "" {
						fid = uuid.NewString()
					}
					active := true
					if f.IsActive != nil {
						active = *f.IsActive
					}
					sections := make([]json.RawMessage, 0, len(f.Sections))
					for _, s := range f.Sections {
						b, err := json.Marshal(s)
						if err != nil {
							return fmt.Errorf("form %s sections: %w", f.Name, err)
						}
						sections = append(sections, b)
					}
					if err := r.InsertForm(ctx, domain.Form{
						ID: fid, Name: f.Name, Description: f.Description,
						Sections: sections, EstimatedMinutes: f.EstimatedMinutes,
						IsActive: active, CreatedAt: now,
					}); err != nil {
						return fmt.Errorf("form %s: %w", f.Name, err)
					}
				}
				fmt.Printf("Seeded %d companies, %d forms\n", len(seed.Companies), len(seed.Forms))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func directoryCompaniesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListCompanies(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func directoryContractorsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "contractors <company-id>",
		Short: "List contractors for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListContractors(ctx, args[0], status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Full name", "Cedula", "Status"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.FullName, c.Cedula, c.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "active", "status filter (empty for all)")
	return cmd
}

func directoryDepartmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "departments <company-id>",
		Short: "List approval departments for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDepartments(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Code"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Name, d.Code})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func directoryFormsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List auxiliary forms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListForms(ctx, !all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Minutes", "Active"})
				for _, f := range items {
					tw.AppendRow(table.Row{f.ID, f.Name, f.EstimatedMinutes, f.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive forms")
	return cmd
}

// templateFile is the YAML shape accepted by 'pf template import'.
type templateFile struct {
	Templates []struct {
		ID              string   `yaml:"id"`
		Name            string   `yaml:"name"`
		Category        string   `yaml:"category"`
		WorkDescription string   `yaml:"work_description"`
		DefaultLocation string   `yaml:"default_location"`
		IdentifiedRisks []string `yaml:"identified_risks"`
		ToolsToUse      []string `yaml:"tools_to_use"`
		RequiredPPE     []string `yaml:"required_ppe"`
		SafetyControls  []struct {
			Item        string `yaml:"item"`
			Description string `yaml:"description"`
		} `yaml:"safety_controls"`
		RequiredApprovals []string `yaml:"required_approvals"`
		RequiredForms     []struct {
			Form      string `yaml:"form"`
			Mandatory bool   `yaml:"mandatory"`
			Order     int    `yaml:"order"`
			Condition string `yaml:"condition"`
		} `yaml:"required_forms"`
	} `yaml:"templates"`
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{Use: "template", Short: "Manage permit templates"}
	tpl.AddCommand(templateImportCmd())
	tpl.AddCommand(templateListCmd())
	tpl.AddCommand(templateShowCmd())
	tpl.AddCommand(templateDeleteCmd())
	return tpl
}

func templateImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import templates from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var file templateFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse template file: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				for _, t := range file.Templates {
					id := t.ID
					if id == "" {
						id = uuid.NewString()
					}
					spec := engine.TemplateSpec{
						Name:              t.Name,
						Category:          t.Category,
						WorkDescription:   t.WorkDescription,
						DefaultLocation:   t.DefaultLocation,
						IdentifiedRisks:   t.IdentifiedRisks,
						ToolsToUse:        t.ToolsToUse,
						RequiredPPE:       t.RequiredPPE,
						RequiredApprovals: t.RequiredApprovals,
					}
					for _, c := range t.SafetyControls {
						spec.SafetyControls = append(spec.SafetyControls, domain.TemplateControl{Item: c.Item, Description: c.Description})
					}
					for _, f := range t.RequiredForms {
						spec.RequiredForms = append(spec.RequiredForms, domain.FormAttachment{
							FormID: f.Form, Mandatory: f.Mandatory, Order: f.Order, Condition: f.Condition,
						})
					}
					if _, err := a.Engine.SaveTemplate(ctx, id, spec); err != nil {
						return fmt.Errorf("template %s: %w", t.Name, err)
					}
				}
				fmt.Printf("Imported %d templates\n", len(file.Templates))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML template file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func templateListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTemplates(ctx, category)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Category})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				t, err := r.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrDump(t)
			})
		},
	}
	return cmd
}

func templateDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteTemplate(ctx, args[0])
			})
		},
	}
	return cmd
}

func permitCmd() *cobra.Command {
	p := &cobra.Command{Use: "permit", Short: "Inspect submitted permits"}
	p.AddCommand(permitShowCmd())
	return p
}

func permitShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a submitted work permit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetWorkPermit(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrDump(p)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListEvents(ctx, entityKind, entityID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, e := range events {
					entity := e.EntityKind
					if e.EntityID != "" {
						entity += "/" + e.EntityID
					}
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, entity, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyRevokeCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the secret is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			secret := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
			key := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actor,
				Name:      name,
				KeyHash:   repo.HashAPIKey(secret),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "secret": secret})
				}
				fmt.Printf("API key %s for %s\nSecret (save it, it is not stored): %s\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key acts as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			a, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("PERMITFLOW_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("PERMITFLOW_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header)")
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Permitflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id without auth (dev only)")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, repo.Repo{DB: a.DB})
}

func printJSONOrDump(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
