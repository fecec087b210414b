package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/config"
	"github.com/flowsync/flowsync/internal/keygen"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/storage/sqlite"
	"github.com/flowsync/flowsync/internal/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load users, projects, and issues from a YAML fixture",
	Long: `Seed populates the database from a YAML fixture file. Existing users
(matched by email) and projects (matched by code) are skipped, so seeding
is safe to re-run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context(), args[0])
	},
}

type seedFile struct {
	Users []struct {
		Email       string `yaml:"email"`
		DisplayName string `yaml:"displayName"`
		Password    string `yaml:"password"`
		Role        string `yaml:"role"`
	} `yaml:"users"`
	Projects []struct {
		Name        string `yaml:"name"`
		Code        string `yaml:"code"`
		Description string `yaml:"description"`
		Issues      []struct {
			Title       string `yaml:"title"`
			Description string `yaml:"description"`
			Status      string `yaml:"status"`
			Priority    string `yaml:"priority"`
			Type        string `yaml:"type"`
			Assignee    string `yaml:"assignee"`
			Reporter    string `yaml:"reporter"`
			StoryPoints *int   `yaml:"storyPoints"`
		} `yaml:"issues"`
	} `yaml:"projects"`
}

func runSeed(ctx context.Context, path string) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	var fixture seedFile
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	// Users first so issue assignee/reporter emails resolve.
	usersByEmail := make(map[string]*types.User)
	for _, u := range fixture.Users {
		existing, err := store.GetUserByEmail(ctx, u.Email)
		if err == nil {
			usersByEmail[u.Email] = existing
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		role := types.Role(u.Role)
		if u.Role == "" {
			role = types.RoleMember
		}
		if !role.IsValid() {
			return fmt.Errorf("user %s: invalid role %q", u.Email, u.Role)
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		user := &types.User{
			ID:           uuid.NewString(),
			Email:        u.Email,
			DisplayName:  u.DisplayName,
			PasswordHash: hash,
			Role:         role,
			Active:       true,
		}
		if err := store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.Email, err)
		}
		usersByEmail[u.Email] = user
		fmt.Printf("created user %s (%s)\n", u.Email, role)
	}

	keys := keygen.New(store)
	for _, p := range fixture.Projects {
		project, created, err := ensureProject(ctx, store, p.Name, p.Code, p.Description)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("created project %s (%s)\n", p.Name, p.Code)
		}

		for _, in := range p.Issues {
			reporter, ok := usersByEmail[in.Reporter]
			if !ok {
				return fmt.Errorf("issue %q: unknown reporter %q", in.Title, in.Reporter)
			}
			issue := &types.Issue{
				ID:          uuid.NewString(),
				ProjectID:   project.ID,
				Title:       in.Title,
				Description: in.Description,
				Status:      types.StatusToDo,
				Priority:    types.PriorityMedium,
				Type:        types.TypeTask,
				ReporterID:  reporter.ID,
				StoryPoints: in.StoryPoints,
			}
			if in.Status != "" {
				issue.Status = types.NormalizeStatus(in.Status)
			}
			if in.Priority != "" {
				issue.Priority = types.NormalizePriority(in.Priority)
			}
			if in.Type != "" {
				issue.Type = types.NormalizeType(in.Type)
			}
			if in.Assignee != "" {
				assignee, ok := usersByEmail[in.Assignee]
				if !ok {
					return fmt.Errorf("issue %q: unknown assignee %q", in.Title, in.Assignee)
				}
				issue.AssigneeID = &assignee.ID
			}
			if err := issue.Validate(); err != nil {
				return fmt.Errorf("issue %q: %w", in.Title, err)
			}
			err = keys.Assign(ctx, project.ID, func(key string) error {
				issue.Key = key
				return store.CreateIssue(ctx, issue)
			})
			if err != nil {
				return fmt.Errorf("failed to create issue %q: %w", in.Title, err)
			}
			fmt.Printf("created issue %s %q\n", issue.Key, issue.Title)
		}
	}
	return nil
}

func ensureProject(ctx context.Context, store storage.Storage, name, code, description string) (*types.Project, bool, error) {
	projects, err := store.ListProjects(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, p := range projects {
		if p.Code == code {
			return p, false, nil
		}
	}
	project := &types.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Code:        code,
		Description: description,
	}
	if err := store.CreateProject(ctx, project); err != nil {
		return nil, false, fmt.Errorf("failed to create project %s: %w", code, err)
	}
	return project, true, nil
}
