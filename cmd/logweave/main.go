// Command logweave ingests one plain or gzip-compressed log file, folding
// it into normalized records, matching key-texts against the active
// template index, and firing an LLM committee to draft new templates when
// the diversity buffer fills. See spec.md/SPEC_FULL.md for the full
// pipeline description.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/logweave/logweave/internal/archive"
	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/committee"
	"github.com/logweave/logweave/internal/config"
	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logx"
	"github.com/logweave/logweave/internal/opsserver"
	"github.com/logweave/logweave/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cliInit()
	logx.SetLevel(flagLogLevel)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logx.Errorf("gops/agent.Listen failed: %s", err.Error())
			return 1
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logx.Warnf("loading .env: %v", err)
	}

	if flagPath == "" && flagWatchDir == "" {
		logx.Errorf("one of --path or --watch-dir is required")
		return 2
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		logx.Errorf("loading config: %v", err)
		return 2
	}
	applyFlagOverrides(&cfg)

	cat, err := catalog.Connect("sqlite3", cfg.DBPath)
	if err != nil {
		logx.Errorf("connecting to catalog %s: %v", cfg.DBPath, err)
		return 1
	}
	defer cat.Close()

	indexMgr := index.NewManager(cat, 0)

	backend, err := buildBackend(cfg)
	if err != nil {
		logx.Errorf("configuring committee backend: %v", err)
		return 2
	}

	committeeCfg := committee.DefaultConfig()
	if cfg.FirstPass.Committee.MaxItemsPerCall > 0 {
		committeeCfg.MaxItemsPerCall = cfg.FirstPass.Committee.MaxItemsPerCall
	}
	if cfg.FirstPass.Committee.MaxCharsPerCall > 0 {
		committeeCfg.MaxCharsPerCall = cfg.FirstPass.Committee.MaxCharsPerCall
	}
	committeeCfg.Source = cfg.FirstPass.Committee.Backend

	orch, err := committee.New(backend, cat, committeeCfg, cfg.FirstPass.Committee.AdversaryPolicy)
	if err != nil {
		logx.Errorf("constructing committee orchestrator: %v", err)
		return 2
	}

	pcfg := cfg.PipelineConfig()
	pcfg.ForceFlush = flagForceFlush
	if flagNormalOut != "" {
		pcfg.NormalOutDir = flagNormalOut
	}

	driver := pipeline.New(cat, indexMgr, orch, pcfg)
	if cfg.FirstPass.Archive.S3Bucket != "" {
		uploader, err := archive.New(context.Background(), cfg.FirstPass.Archive.S3Bucket, cfg.FirstPass.Archive.S3Prefix, cfg.FirstPass.Archive.S3Region)
		if err != nil {
			logx.Errorf("configuring S3 archiver: %v", err)
			return 2
		}
		driver.Archiver = uploader
	}

	if flagOpsAddr != "" {
		if err := indexMgr.LoadInitial(context.Background()); err != nil {
			logx.Errorf("initial index load: %v", err)
			return 1
		}
		srv := &opsserver.Server{Cat: cat, IndexMgr: indexMgr}
		go func() {
			if err := srv.ListenAndServe(flagOpsAddr); err != nil {
				logx.Errorf("ops server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagWatchDir != "" {
		var liveCfg atomic.Pointer[pipeline.Config]
		liveCfg.Store(&pcfg)
		if flagConfigFile != "" {
			watcher, err := config.NewWatcher()
			if err != nil {
				logx.Warnf("config hot-reload disabled: %v", err)
			} else {
				defer watcher.Close()
				if err := watcher.Watch(flagConfigFile, func() {
					reloaded, err := config.Load(flagConfigFile)
					if err != nil {
						logx.Warnf("config hot-reload: %v", err)
						return
					}
					applyFlagOverrides(&reloaded)
					next := reloaded.PipelineConfig()
					next.ForceFlush = flagForceFlush
					if flagNormalOut != "" {
						next.NormalOutDir = flagNormalOut
					}
					liveCfg.Store(&next)
					logx.Infof("config hot-reload: %s applied from the next scan", flagConfigFile)
				}); err != nil {
					logx.Warnf("config hot-reload: watching %s: %v", flagConfigFile, err)
				}
			}
		}
		if err := runDaemon(ctx, flagWatchDir, flagWatchInterval, driver, &liveCfg); err != nil {
			logx.Errorf("daemon: %v", err)
			return 1
		}
		return 0
	}

	totals, err := driver.Run(ctx, flagPath)
	if err != nil {
		logx.Errorf("pipeline run failed: %v", err)
		return 1
	}
	logx.Infof("completed %s: lines=%d records=%d matched=%d unmatched=%d firings=%d templates=%d",
		flagPath, totals.LinesRead, totals.RecordsParsed, totals.Matched, totals.Unmatched,
		totals.CommitteeFirings, totals.TemplatesWritten)
	return 0
}

// applyFlagOverrides lets nonzero CLI flags win over the loaded config,
// per spec.md §6's CLI surface taking precedence for a single invocation.
func applyFlagOverrides(cfg *config.Config) {
	if flagSizeThreshold > 0 {
		cfg.FirstPass.Buffer.SizeThreshold = flagSizeThreshold
	}
	if flagMaxPerMicroBatch > 0 {
		cfg.FirstPass.Buffer.MaxPerMicroBatch = flagMaxPerMicroBatch
	}
	if flagChunkLines > 0 {
		cfg.FirstPass.ReadChunkLines = flagChunkLines
	}
	if flagMicroBatch > 0 {
		cfg.FirstPass.MicroBatchSize = flagMicroBatch
	}
	if flagMatchWorkers > 0 {
		cfg.FirstPass.MatchWorkersPerBatch = flagMatchWorkers
	}
}

// buildBackend selects Stub or HTTPBackend per cfg.FirstPass.Committee.Backend,
// resolving HTTPBackend auth from agents.yaml/secrets.yaml per
// SPEC_FULL.md §4.10.
func buildBackend(cfg config.Config) (committee.Backend, error) {
	switch cfg.FirstPass.Committee.Backend {
	case "", "stub":
		return committee.Stub{}, nil
	case "langchain", "langgraph":
		agents, err := config.LoadAgents(cfg.AgentsPath)
		if err != nil {
			return nil, err
		}
		secrets, err := config.LoadSecrets(cfg.SecretsPath)
		if err != nil {
			return nil, err
		}
		spec := agents.Drafter
		auth := resolveAuth(spec, secrets)
		return committee.NewHTTPBackend(spec.Endpoint, spec.Model, auth, cfg.FirstPass.Committee.RateLimitRPS), nil
	default:
		return committee.Stub{}, nil
	}
}

// resolveAuth builds the HTTPBackend auth for one agent role. A direct
// BearerTokenRef wins outright; otherwise AuthScheme selects an OAuth2
// client-credentials exchange or a local JWT signer, both resolved from
// secrets.yaml. Any other scheme (or none) sends no Authorization header.
func resolveAuth(spec config.AgentSpec, secrets config.SecretsDocument) committee.AuthConfig {
	if spec.BearerTokenRef != "" {
		return committee.AuthConfig{BearerToken: secrets.Lookup(spec.BearerTokenRef)}
	}
	switch spec.AuthScheme {
	case "oauth2":
		clientID := config.ResolveField("", spec.ClientIDRef, secrets, "", "")
		clientSecret := config.ResolveField("", spec.ClientSecretRef, secrets, "", "")
		if clientID == "" || clientSecret == "" {
			logx.Warnf("committee: oauth2 auth_scheme configured for %s but client_id_ref/client_secret_ref did not resolve", spec.Endpoint)
			return committee.AuthConfig{}
		}
		return committee.AuthConfig{
			OAuth2: &clientcredentials.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenURL:     spec.TokenURL,
			},
		}
	case "jwt":
		key := config.ResolveField("", spec.SigningKeyRef, secrets, "", "")
		if key == "" {
			logx.Warnf("committee: jwt auth_scheme configured for %s but signing_key_ref did not resolve", spec.Endpoint)
			return committee.AuthConfig{}
		}
		return committee.AuthConfig{JWT: &committee.JWTSigner{SigningKey: []byte(key), Issuer: "logweave", Subject: spec.Model}}
	default:
		return committee.AuthConfig{}
	}
}
