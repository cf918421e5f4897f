package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/config"
	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/k8s"
	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/management"
	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/prom"
	"github.com/HaPhanBaoMinh/kmon/internal/registry"
)

// buildRegistry registers the entities of the configured backend.
func buildRegistry(cfg *config.Config, log *zap.Logger) (*registry.Registry, error) {
	var entities []domain.Entity
	switch cfg.Backend {
	case config.BackendMock:
		entities = management.Entities(mock.New(), log)
	case config.BackendManagement:
		c := management.NewClient(cfg.Management.Endpoint, cfg.Management.Timeout, log)
		entities = management.Entities(c, log)
	case config.BackendKubernetes:
		repo, err := k8s.New(k8s.Config{
			Kubeconfig: cfg.Kubernetes.Kubeconfig,
			Context:    cfg.Kubernetes.Context,
			Namespace:  cfg.Kubernetes.Namespace,
			Selector:   cfg.Kubernetes.Selector,
			QPS:        cfg.Kubernetes.QPS,
			Burst:      cfg.Kubernetes.Burst,
		}, log)
		if err != nil {
			return nil, err
		}
		entities = repo.Entities()
	case config.BackendPrometheus:
		src, err := prom.New(prom.Options{
			Address:         cfg.Prometheus.Address,
			BearerTokenFile: cfg.Prometheus.BearerTokenFile,
			Timeout:         cfg.Prometheus.Timeout,
			Queries:         cfg.Prometheus.Queries,
			Logger:          log,
		})
		if err != nil {
			return nil, err
		}
		entities = []domain.Entity{src.Entity()}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	for i := range entities {
		if entities[i].Top != nil {
			top := *entities[i].Top
			top.N = cfg.TopN
			entities[i].Top = &top
		}
	}
	return registry.New(entities...)
}

// startEntity picks the entity shown first: the flag, then the config, then
// the first registered one.
func startEntity(reg *registry.Registry, names ...string) (string, error) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, err := reg.Lookup(n); err != nil {
			return "", err
		}
		return n, nil
	}
	all := reg.Names()
	if len(all) == 0 {
		return "", fmt.Errorf("backend has no entities")
	}
	return all[0], nil
}
