package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/config"
	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/logger"
	"github.com/abhisek/pathwise/internal/service"
	"github.com/abhisek/pathwise/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "pathwise",
	Short:        "Knowledge-graph learning paths",
	Long:         "Pathwise serves prerequisite-aware learning paths over course knowledge graphs and tracks learner progress.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PATHWISE_DB env var)")
	rootCmd.PersistentFlags().String("content", "", "Directory of course files (default: built-in sample course)")
	rootCmd.PersistentFlags().String("course", "sat-math", "Course id")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config and applies the --db and --content flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB.Path = p
	}
	if d, _ := cmd.Flags().GetString("content"); d != "" {
		cfg.Content.Dir = d
	}
	return cfg, nil
}

// resolveDBPath returns the database path using --db flag or config
// (highest priority), then PATHWISE_DB env var, then the default XDG path.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DB.Path != "" {
		return cfg.DB.Path, store.EnsureDir(cfg.DB.Path)
	}
	return store.DefaultDBPath()
}

// loadRegistry loads the configured content directory, or the sample course
// when none is set. Files that fail to load are logged; it is an error only
// when nothing loads.
func loadRegistry(cfg config.Config, log *zap.Logger) (*service.Registry, error) {
	reg := service.NewRegistry()
	if cfg.Content.Dir == "" {
		c, err := content.Sample()
		if err != nil {
			return nil, fmt.Errorf("load sample course: %w", err)
		}
		return reg, reg.Register(c)
	}

	courses, err := content.LoadDir(cfg.Content.Dir)
	if err != nil {
		log.Warn("content problems", zap.String("dir", cfg.Content.Dir), zap.Error(err))
	}
	if len(courses) == 0 {
		return nil, errors.Join(fmt.Errorf("no courses loaded from %s", cfg.Content.Dir), err)
	}
	for _, c := range courses {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// env is what the local commands need: config, logger, courses and, when
// opened, the store and service.
type env struct {
	cfg    config.Config
	log    *zap.Logger
	reg    *service.Registry
	store  *store.Store
	svc    *service.Service
	course *content.Course
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
	_ = e.log.Sync()
}

// newEnv loads config and content, and resolves --course. withStore also
// opens the database and builds the service.
func newEnv(cmd *cobra.Command, withStore bool) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	// Command output goes to stdout; keep stderr for warnings.
	log, err := logger.New(cfg.Log.Mode, "warn")
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(cfg, log)
	if err != nil {
		return nil, err
	}
	courseID, _ := cmd.Flags().GetString("course")
	course, err := reg.Get(courseID)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, reg: reg, course: course}
	if !withStore {
		return e, nil
	}

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = st
	e.svc = service.New(reg, st.ProgressRepo(), st.EventRepo(),
		service.WithLogger(log),
		service.WithDefaultLimit(cfg.Recommend.DefaultLimit),
	)
	return e, nil
}
