// Package k8s serves pod and node tables from the Kubernetes API,
// metrics-server and the kubelet summary endpoint.
package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	statsv1alpha1 "k8s.io/kubelet/pkg/apis/stats/v1alpha1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

// SummaryFunc returns the kubelet stats summary of one node.
type SummaryFunc func(ctx context.Context, node string) (*statsv1alpha1.Summary, error)

type Config struct {
	Kubeconfig string
	Context    string
	// Namespace limits the pod table; "" or "all" lists every namespace.
	Namespace string
	Selector  string
	QPS       float32
	Burst     int
}

type Repo struct {
	core    kubernetes.Interface
	metrics metricsclient.Interface
	summary SummaryFunc

	namespace string
	selector  string
	clock     clock.PassiveClock
	log       *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Repo, error) {
	rc, err := loadRESTConfig(cfg.Kubeconfig, cfg.Context)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	rc.QPS = 30
	rc.Burst = 60
	if cfg.QPS > 0 {
		rc.QPS = cfg.QPS
	}
	if cfg.Burst > 0 {
		rc.Burst = cfg.Burst
	}
	core, err := kubernetes.NewForConfig(rc)
	if err != nil {
		return nil, err
	}
	m, err := metricsclient.NewForConfig(rc)
	if err != nil {
		return nil, err
	}
	return NewForClients(core, m, cfg, log), nil
}

// NewForClients builds a Repo on existing clientsets. The kubelet summary is
// read through the API server node proxy unless WithSummary replaces it.
func NewForClients(core kubernetes.Interface, m metricsclient.Interface, cfg Config, log *zap.Logger) *Repo {
	if log == nil {
		log = zap.NewNop()
	}
	ns := cfg.Namespace
	if ns == "all" {
		ns = ""
	}
	r := &Repo{
		core:      core,
		metrics:   m,
		namespace: ns,
		selector:  cfg.Selector,
		clock:     clock.RealClock{},
		log:       log.Named("k8s"),
	}
	r.summary = r.kubeletSummary
	return r
}

func (r *Repo) WithSummary(fn SummaryFunc) *Repo {
	r.summary = fn
	return r
}

func (r *Repo) WithClock(c clock.PassiveClock) *Repo {
	r.clock = c
	return r
}

func loadRESTConfig(kubeconfigPath, contextName string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

func (r *Repo) kubeletSummary(ctx context.Context, node string) (*statsv1alpha1.Summary, error) {
	raw, err := r.core.CoreV1().RESTClient().Get().
		Resource("nodes").Name(node).
		SubResource("proxy").Suffix("stats/summary").
		DoRaw(ctx)
	if err != nil {
		return nil, err
	}
	var s statsv1alpha1.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode summary of %s: %w", node, err)
	}
	return &s, nil
}

// summaries fetches the kubelet summary of each node. Nodes whose kubelet
// cannot be reached are left out.
func (r *Repo) summaries(ctx context.Context, nodes []string) map[string]*statsv1alpha1.Summary {
	out := make(map[string]*statsv1alpha1.Summary, len(nodes))
	for _, n := range nodes {
		if n == "" {
			continue
		}
		if _, ok := out[n]; ok {
			continue
		}
		s, err := r.summary(ctx, n)
		if err != nil {
			r.log.Debug("kubelet summary unavailable", zap.String("node", n), zap.Error(err))
			continue
		}
		out[n] = s
	}
	return out
}

// ListPods returns one record per pod, joined with metrics-server usage and
// kubelet network counters where available.
func (r *Repo) ListPods(ctx context.Context) ([]domain.Record, error) {
	opts := metav1.ListOptions{LabelSelector: r.selector}
	pods, err := r.core.CoreV1().Pods(r.namespace).List(ctx, opts)
	if err != nil {
		return nil, err
	}

	// usage is best effort
	usage := map[string]corev1.ResourceList{}
	pms, err := r.metrics.MetricsV1beta1().PodMetricses(r.namespace).List(ctx, opts)
	if err != nil {
		r.logMetricsErr("pod metrics", err)
		pms = &metricsv1beta1.PodMetricsList{}
	}
	for _, m := range pms.Items {
		total := corev1.ResourceList{}
		for _, c := range m.Containers {
			for res, q := range c.Usage {
				if cur, ok := total[res]; ok {
					cur.Add(q)
					total[res] = cur
				} else {
					total[res] = q.DeepCopy()
				}
			}
		}
		usage[m.Namespace+"/"+m.Name] = total
	}

	nodes := make([]string, 0, len(pods.Items))
	for _, p := range pods.Items {
		nodes = append(nodes, p.Spec.NodeName)
	}
	net := map[string]*statsv1alpha1.NetworkStats{}
	for _, s := range r.summaries(ctx, nodes) {
		for i := range s.Pods {
			ps := &s.Pods[i]
			net[ps.PodRef.Namespace+"/"+ps.PodRef.Name] = ps.Network
		}
	}

	out := make([]domain.Record, 0, len(pods.Items))
	for _, p := range pods.Items {
		key := p.Namespace + "/" + p.Name
		rec := domain.Record{
			"key":       key,
			"namespace": p.Namespace,
			"name":      p.Name,
			"node":      p.Spec.NodeName,
			"phase":     string(p.Status.Phase),
			"ready":     readyStr(p.Status.ContainerStatuses),
			"restarts":  float64(restarts(p.Status.ContainerStatuses)),
		}
		if u, ok := usage[key]; ok {
			if q, ok := u[corev1.ResourceCPU]; ok {
				rec["cpu"] = float64(q.MilliValue())
			}
			if q, ok := u[corev1.ResourceMemory]; ok {
				rec["memory"] = float64(q.Value())
			}
		}
		if ns := net[key]; ns != nil {
			putCounter(rec, "rxBytes", ns.RxBytes)
			putCounter(rec, "txBytes", ns.TxBytes)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["key"].(string) < out[j]["key"].(string) })
	return out, nil
}

// ListNodes returns one record per node with utilisation against allocatable
// and the kubelet's cumulative CPU and network counters.
func (r *Repo) ListNodes(ctx context.Context) ([]domain.Record, error) {
	nodes, err := r.core.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}

	usage := map[string]corev1.ResourceList{}
	nms, err := r.metrics.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		r.logMetricsErr("node metrics", err)
		nms = &metricsv1beta1.NodeMetricsList{}
	}
	for _, m := range nms.Items {
		usage[m.Name] = m.Usage
	}

	// one list for all pods instead of one per node
	podCount := map[string]int{}
	if pods, err := r.core.CoreV1().Pods("").List(ctx, metav1.ListOptions{}); err == nil {
		for _, p := range pods.Items {
			podCount[p.Spec.NodeName]++
		}
	}

	names := make([]string, 0, len(nodes.Items))
	for _, n := range nodes.Items {
		names = append(names, n.Name)
	}
	sums := r.summaries(ctx, names)

	out := make([]domain.Record, 0, len(nodes.Items))
	for _, n := range nodes.Items {
		rec := domain.Record{
			"name":    n.Name,
			"status":  nodeStatus(n),
			"version": n.Status.NodeInfo.KubeletVersion,
			"pods":    podCount[n.Name],
		}
		allocCPU := n.Status.Allocatable.Cpu().MilliValue()
		allocMem := n.Status.Allocatable.Memory().Value()
		if u, ok := usage[n.Name]; ok {
			if q, ok := u[corev1.ResourceCPU]; ok {
				rec["cpu"] = float64(q.MilliValue())
				rec["cpuUsed"] = ratio(q.MilliValue(), allocCPU)
			}
			if q, ok := u[corev1.ResourceMemory]; ok {
				rec["memory"] = float64(q.Value())
				rec["memUsed"] = ratio(q.Value(), allocMem)
			}
		}
		if s := sums[n.Name]; s != nil {
			if s.Node.CPU != nil && s.Node.CPU.UsageCoreNanoSeconds != nil {
				rec["cpuSeconds"] = float64(*s.Node.CPU.UsageCoreNanoSeconds) / 1e9
			}
			if s.Node.Network != nil {
				putCounter(rec, "rxBytes", s.Node.Network.RxBytes)
				putCounter(rec, "txBytes", s.Node.Network.TxBytes)
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["name"].(string) < out[j]["name"].(string) })
	return out, nil
}

func (r *Repo) logMetricsErr(what string, err error) {
	if apierrors.IsNotFound(err) || apierrors.IsServiceUnavailable(err) {
		r.log.Debug(what+" api unavailable", zap.Error(err))
		return
	}
	r.log.Warn("list "+what, zap.Error(err))
}

func (r *Repo) page(ctx context.Context, list func(context.Context) ([]domain.Record, error), page, perPage int) (domain.Page, error) {
	recs, err := list(ctx)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Data: recs, Page: page, PerPage: perPage, Timestamp: r.clock.Now()}, nil
}

// Entities returns the pod and node tables.
func (r *Repo) Entities() []domain.Entity {
	pods := domain.SourceFunc(func(ctx context.Context, page, perPage int) (domain.Page, error) {
		return r.page(ctx, r.ListPods, page, perPage)
	})
	nodes := domain.SourceFunc(func(ctx context.Context, page, perPage int) (domain.Page, error) {
		return r.page(ctx, r.ListNodes, page, perPage)
	})
	return []domain.Entity{
		{
			Name:  "pods",
			Title: "Pods",
			Key:   "key",
			Fields: []domain.FieldSchema{
				{Field: "namespace", Title: "Namespace", Sortable: true, Filterable: true},
				{Field: "name", Title: "Pod", Sortable: true, Filterable: true, NoWrap: true},
				{Field: "node", Title: "Node", Sortable: true, Filterable: true},
				{Field: "phase", Title: "Phase", Sortable: true, Filterable: true},
				{Field: "ready", Title: "Ready"},
				{Field: "cpu", Title: "CPU", Numeric: true, Sortable: true, Format: "millicores"},
				{Field: "memory", Title: "Memory", Numeric: true, Sortable: true, Format: "bytes"},
				{Field: "restarts", Title: "Restarts", Numeric: true, Sortable: true, Format: "pretty"},
				{Field: "rxRate", Title: "RX", Numeric: true, Sortable: true, Format: "byterate"},
				{Field: "txRate", Title: "TX", Numeric: true, Sortable: true, Format: "byterate"},
			},
			Rates: []domain.RateSpec{
				{Counter: "restarts", Field: "restartRate"},
				{Counter: "rxBytes", Field: "rxRate"},
				{Counter: "txBytes", Field: "txRate"},
			},
			Source: func() domain.DataSource { return pods },
		},
		{
			Name:  "nodes",
			Title: "Nodes",
			Key:   "name",
			Fields: []domain.FieldSchema{
				{Field: "name", Title: "Node", Sortable: true, Filterable: true, NoWrap: true},
				{Field: "status", Title: "Status", Sortable: true, Filterable: true},
				{Field: "cpuUsed", Title: "CPU%", Numeric: true, Sortable: true, Format: "bar"},
				{Field: "memUsed", Title: "MEM%", Numeric: true, Sortable: true, Format: "bar"},
				{Field: "cpuRate", Title: "Cores", Numeric: true, Sortable: true, Format: "cores"},
				{Field: "rxRate", Title: "RX", Numeric: true, Sortable: true, Format: "byterate"},
				{Field: "txRate", Title: "TX", Numeric: true, Sortable: true, Format: "byterate"},
				{Field: "pods", Title: "Pods", Numeric: true, Sortable: true, Format: "pretty"},
				{Field: "version", Title: "Version", Filterable: true},
			},
			Rates: []domain.RateSpec{
				{Counter: "cpuSeconds", Field: "cpuRate"},
				{Counter: "rxBytes", Field: "rxRate"},
				{Counter: "txBytes", Field: "txRate"},
			},
			Top: &domain.TopNSpec{
				Title:     "Busiest nodes",
				Primary:   "cpuRate",
				Secondary: "rxRate",
			},
			Source: func() domain.DataSource { return nodes },
		},
	}
}

func putCounter(rec domain.Record, field string, v *uint64) {
	if v != nil {
		rec[field] = float64(*v)
	}
}

func restarts(sts []corev1.ContainerStatus) int32 {
	var n int32
	for _, s := range sts {
		n += s.RestartCount
	}
	return n
}

func readyStr(sts []corev1.ContainerStatus) string {
	r, t := 0, len(sts)
	for _, s := range sts {
		if s.Ready {
			r++
		}
	}
	if t == 0 {
		t = 1
	}
	return fmt.Sprintf("%d/%d", r, t)
}

func nodeStatus(n corev1.Node) string {
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			if c.Status == corev1.ConditionTrue {
				return "Ready"
			}
			return "NotReady"
		}
	}
	return "Unknown"
}

func ratio(used, alloc int64) float64 {
	if alloc < 1 {
		alloc = 1
	}
	v := float64(used) / float64(alloc)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
