package cmd

import (
	"path/filepath"

	"github.com/werner/examsync/internal/config"
	"github.com/werner/examsync/internal/engine"
	"github.com/werner/examsync/internal/netmon"
	"github.com/werner/examsync/internal/sink"
	"github.com/werner/examsync/internal/store"
)

// runtime bundles the fully wired sync stack for a command invocation.
type runtime struct {
	Store   *store.Store
	Client  *sink.Client
	Monitor *netmon.Monitor
	Engine  *engine.Engine
	Wake    *engine.FileWakeTrigger
}

// openRuntime opens the local store and wires the sink client,
// connectivity monitor and engine from config. The initial connectivity
// state is probed synchronously so one-shot commands see the real state.
func openRuntime(baseDir string) (*runtime, error) {
	st, err := store.Open(baseDir)
	if err != nil {
		return nil, err
	}

	deviceID, err := config.GetDeviceID()
	if err != nil {
		st.Close()
		return nil, err
	}

	client := sink.New(config.GetServerURL(), config.GetAPIKey(), deviceID, config.GetRequestTimeout())
	mon := netmon.New(client, config.GetProbeInterval())
	wake := engine.NewFileWakeTrigger(filepath.Join(baseDir, ".examsync", "wake"))
	eng := engine.New(st, client, mon, engine.WithWakeTrigger(wake))

	return &runtime{
		Store:   st,
		Client:  client,
		Monitor: mon,
		Engine:  eng,
		Wake:    wake,
	}, nil
}

// Close waits for in-flight deliveries and releases the store.
func (r *runtime) Close() {
	r.Engine.Close()
	r.Store.Close()
}
