package sandbox

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// HostModule is the only import module plugins may link against.
const HostModule = "surfer"

const hostABI = `
	current_dir: func(buf: u32, cap: u32) -> s32;
	read_file: func(path: u32, path-len: u32, buf: u32, cap: u32) -> s64;
`

var hostExports = mustParseABI(hostABI)

// host implements the capability allow-list: reading the working directory
// path and reading files. Nothing else is reachable from a plugin.
type host struct {
	workDir string
}

func (h *host) instantiate(ctx context.Context, rt wazero.Runtime) error {
	cd := hostExports["current_dir"]
	rf := hostExports["read_file"]
	_, err := rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.currentDir), cd.params, cd.results).
		WithParameterNames("buf", "cap").
		Export("current_dir").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.readFile), rf.params, rf.results).
		WithParameterNames("path", "path_len", "buf", "cap").
		Export("read_file").
		Instantiate(ctx)
	return err
}

func (h *host) currentDir(_ context.Context, mod api.Module, stack []uint64) {
	buf, capacity := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	stack[0] = api.EncodeI32(int32(writeClipped(mod, buf, capacity, []byte(h.workDir))))
}

func (h *host) readFile(_ context.Context, mod api.Module, stack []uint64) {
	pathPtr, pathLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	buf, capacity := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])

	raw, ok := mod.Memory().Read(pathPtr, pathLen)
	if !ok {
		stack[0] = api.EncodeI64(-1)
		return
	}
	path := string(raw)
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.workDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		Logger().Debug("plugin read_file failed",
			zap.String("module", mod.Name()),
			zap.String("path", path),
			zap.Error(err))
		stack[0] = api.EncodeI64(-1)
		return
	}
	stack[0] = api.EncodeI64(writeClipped(mod, buf, capacity, data))
}

// writeClipped copies at most capacity bytes of data into guest memory and
// returns the full length, so a guest can retry with a larger buffer.
func writeClipped(mod api.Module, buf, capacity uint32, data []byte) int64 {
	n := min(uint32(len(data)), capacity)
	if n > 0 && !mod.Memory().Write(buf, data[:n]) {
		return -1
	}
	return int64(len(data))
}
