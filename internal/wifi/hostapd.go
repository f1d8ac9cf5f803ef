package wifi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/captiveconfig/internal/logging"
)

// DefaultAPStartTimeout bounds the background bring-up. `hostapd -B`
// returns once the interface is beaconing or has failed to initialise.
const DefaultAPStartTimeout = 10 * time.Second

// HostapdAP brings up an open soft-AP with `ip` and a daemonised hostapd.
// The bring-up runs in the background; callers poll APStarted.
type HostapdAP struct {
	HostapdPath  string
	IPPath       string
	StartTimeout time.Duration
	Run          CommandRunner

	// WorkDir holds the generated hostapd.conf and pid file.
	// Empty means a fresh temporary directory per StartAP.
	WorkDir string

	mu       sync.Mutex
	cfg      APConfig
	dir      string
	ownsDir  bool
	starting bool
	started  bool
	err      error
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewHostapdAP creates a soft-AP driver using hostapd and iproute2 from PATH.
func NewHostapdAP() *HostapdAP {
	return &HostapdAP{
		HostapdPath:  "hostapd",
		IPPath:       "ip",
		StartTimeout: DefaultAPStartTimeout,
		Run:          ExecRunner,
	}
}

// StartAP validates cfg and launches the bring-up without waiting for it.
// Only an invalid config or an AP already up or starting is reported here.
func (a *HostapdAP) StartAP(cfg APConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.starting || a.started {
		return fmt.Errorf("soft-AP already running on %s", a.cfg.Interface)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	timeout := a.StartTimeout
	if timeout <= 0 {
		timeout = DefaultAPStartTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	a.cfg = cfg
	a.starting = true
	a.err = nil
	a.cancel = cancel
	a.finished = make(chan struct{})

	go a.bringUp(ctx, cancel, cfg, a.finished)

	logging.Debug("Soft-AP bring-up started",
		zap.String("interface", cfg.Interface),
		zap.String("ssid", cfg.SSID),
	)
	return nil
}

func (a *HostapdAP) bringUp(ctx context.Context, cancel context.CancelFunc, cfg APConfig, finished chan struct{}) {
	defer close(finished)
	defer cancel()

	dir, owns, err := a.launch(ctx, cfg)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.starting = false
	if err != nil {
		a.err = err
		logging.Warn("Soft-AP bring-up failed",
			zap.String("interface", cfg.Interface),
			zap.Error(err),
		)
		return
	}
	a.dir = dir
	a.ownsDir = owns
	a.started = true

	logging.Info("Soft-AP started",
		zap.String("interface", cfg.Interface),
		zap.String("ssid", cfg.SSID),
		zap.Int("channel", cfg.Channel),
		zap.String("address", fmt.Sprintf("%s/%d", cfg.Address.To4(), cfg.PrefixLen)),
	)
}

// launch assigns the portal address and starts hostapd. Any step failing
// undoes the earlier ones.
func (a *HostapdAP) launch(ctx context.Context, cfg APConfig) (string, bool, error) {
	dir, owns, err := a.workDir()
	if err != nil {
		return "", false, err
	}

	confPath := filepath.Join(dir, "hostapd.conf")
	if err := os.WriteFile(confPath, []byte(HostapdConfig(cfg)), 0600); err != nil {
		a.cleanupDir(dir, owns)
		return "", false, fmt.Errorf("failed to write hostapd config: %w", err)
	}

	cidr := fmt.Sprintf("%s/%d", cfg.Address.To4(), cfg.PrefixLen)
	steps := [][]string{
		{a.IPPath, "addr", "flush", "dev", cfg.Interface},
		{a.IPPath, "addr", "add", cidr, "dev", cfg.Interface},
		{a.IPPath, "link", "set", cfg.Interface, "up"},
	}
	for _, step := range steps {
		if _, err := a.Run(ctx, step[0], step[1:]...); err != nil {
			a.cleanupDir(dir, owns)
			return "", false, fmt.Errorf("failed to configure %s: %w", cfg.Interface, err)
		}
	}

	pidPath := filepath.Join(dir, "hostapd.pid")
	if _, err := a.Run(ctx, a.HostapdPath, "-B", "-P", pidPath, confPath); err != nil {
		_, _ = a.Run(context.Background(), a.IPPath, "addr", "flush", "dev", cfg.Interface)
		a.cleanupDir(dir, owns)
		return "", false, fmt.Errorf("hostapd failed to start: %w", err)
	}
	return dir, owns, nil
}

// APStarted reports whether the last StartAP has finished. A bring-up
// failure is returned with true; StartAP may then be called again.
func (a *HostapdAP) APStarted() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.starting {
		return false, nil
	}
	if a.err != nil {
		return true, a.err
	}
	return a.started, nil
}

// StopAP aborts a bring-up in flight, terminates hostapd and removes the
// portal address. Safe to call when the AP was never started.
func (a *HostapdAP) StopAP() error {
	a.mu.Lock()
	cancel, finished := a.cancel, a.finished
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if finished != nil {
		<-finished
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false

	var firstErr error
	if err := stopPIDFile(filepath.Join(a.dir, "hostapd.pid")); err != nil {
		firstErr = err
	}
	if _, err := a.Run(context.Background(), a.IPPath, "addr", "flush", "dev", a.cfg.Interface); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to release portal address: %w", err)
	}
	a.cleanupDir(a.dir, a.ownsDir)

	logging.Info("Soft-AP stopped", zap.String("interface", a.cfg.Interface))
	return firstErr
}

func (a *HostapdAP) workDir() (string, bool, error) {
	if a.WorkDir != "" {
		if err := os.MkdirAll(a.WorkDir, 0700); err != nil {
			return "", false, fmt.Errorf("failed to create hostapd work dir: %w", err)
		}
		return a.WorkDir, false, nil
	}
	dir, err := os.MkdirTemp("", "captivecfg-hostapd-")
	if err != nil {
		return "", false, fmt.Errorf("failed to create hostapd work dir: %w", err)
	}
	return dir, true, nil
}

func (a *HostapdAP) cleanupDir(dir string, owns bool) {
	if owns {
		_ = os.RemoveAll(dir)
		return
	}
	_ = os.Remove(filepath.Join(dir, "hostapd.conf"))
	_ = os.Remove(filepath.Join(dir, "hostapd.pid"))
}

func stopPIDFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read hostapd pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid hostapd pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("failed to stop hostapd (pid %d): %w", pid, err)
	}
	return nil
}

// HostapdConfig renders a minimal open-network hostapd.conf.
func HostapdConfig(cfg APConfig) string {
	lines := []string{
		"interface=" + cfg.Interface,
		"driver=nl80211",
		"ssid=" + cfg.SSID,
		"hw_mode=g",
		"channel=" + strconv.Itoa(cfg.Channel),
		"auth_algs=1",
		"wpa=0",
		"ignore_broadcast_ssid=0",
	}
	return strings.Join(lines, "\n") + "\n"
}
