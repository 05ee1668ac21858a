//go:build unit

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/testutil"
)

// sharedDevice keeps the fake open across commands so one test can create
// a queue and then address it
type sharedDevice struct {
	*testutil.FakeDevice
}

func (sharedDevice) Close() error { return nil }

type harness struct {
	dev    *testutil.FakeDevice
	opened []string
}

func newHarness() *harness {
	return &harness{dev: testutil.NewFakeDevice()}
}

func (h *harness) execute(args ...string) (string, string, error) {
	a := &app{open: func(path string) (device, error) {
		h.opened = append(h.opened, path)
		return sharedDevice{h.dev}, nil
	}}
	cmd := newRootCommandWith(a)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func emptyState() []byte {
	b := testutil.StateBuilder{Version: 1}
	return b.Bytes()
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "nvme-lm version dev") {
		t.Errorf("expected version line, got: %s", buf.String())
	}
}

func TestDebugCommand(t *testing.T) {
	cmd := newDebugCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("debug command failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"PassthruCmd:               72 bytes", "NVMeAdminCmd: 0xc0484e41", "ControllerDataQueue: 0x45"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	h := newHarness()
	out, _, err := h.execute("--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"create-cdq", "delete-cdq", "track-send", "migration-send", "migration-recv", "set-cdq", "get-cdq", "run"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected %q in help output", sub)
		}
	}
	if len(h.opened) != 0 {
		t.Errorf("help opened a device: %v", h.opened)
	}
}

func TestCreateCDQRequiresConsent(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("create-cdq", "--size", "64")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(h.opened) != 0 {
		t.Error("device opened without consent")
	}
}

func TestCreateCDQ(t *testing.T) {
	h := newHarness()
	out, errOut, err := h.execute("create-cdq", "--size", "0x40", "--cntlid", "3", "--consent", "--device", "/dev/nvme2")
	if err != nil {
		t.Fatalf("create-cdq failed: %v", err)
	}
	if out != "Create CDQ Successful: CDQID=0x0001\n" {
		t.Errorf("unexpected output %q", out)
	}
	if h.dev.QueueCount() != 1 {
		t.Errorf("queue count = %d, expected the queue to stay on the controller", h.dev.QueueCount())
	}
	if !strings.Contains(errOut, "left on the controller") {
		t.Errorf("expected a warning about the kept queue, got %q", errOut)
	}
	if len(h.opened) != 1 || h.opened[0] != "/dev/nvme2" {
		t.Errorf("opened %v", h.opened)
	}
}

func TestCreateCDQRejectsSize(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("create-cdq", "--size", "12", "--consent")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(h.opened) != 0 {
		t.Error("device opened for an invalid command")
	}
}

func TestDeleteCDQUnknownQueue(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("delete-cdq", "--cdqid", "9")
	if !errors.Is(err, driver.ErrDeviceStatus) {
		t.Fatalf("expected device status, got %v", err)
	}
	if code, ok := driver.DeviceStatusCode(err); !ok || code != testutil.StatusInvalidQueueID {
		t.Errorf("status code = 0x%04x, %v", code, ok)
	}
}

func TestTrackSendValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing select", []string{"track-send", "--start"}, driver.ErrInvalidArgument},
		{"start and stop", []string{"track-send", "-s", "0", "--start", "--stop"}, driver.ErrInvalidArgument},
		{"memory changes", []string{"track-send", "-s", "1"}, driver.ErrUnsupported},
		{"select too large", []string{"track-send", "-s", "300"}, driver.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, _, err := h.execute(tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(h.opened) != 0 {
				t.Error("device opened for an invalid command")
			}
		})
	}
}

func TestTrackSendStart(t *testing.T) {
	h := newHarness()
	if _, _, err := h.execute("create-cdq", "--size", "64", "--consent"); err != nil {
		t.Fatalf("create-cdq failed: %v", err)
	}

	out, _, err := h.execute("track-send", "-s", "0", "-C", "1", "--start")
	if err != nil {
		t.Fatalf("track-send failed: %v", err)
	}
	if out != "Track Send (Log User Data Changes) Successful\n" {
		t.Errorf("unexpected output %q", out)
	}
	if !h.dev.Tracking(1) {
		t.Error("expected tracking on cdq 1")
	}
}

func TestMigrationSendSuspendResume(t *testing.T) {
	h := newHarness()
	out, _, err := h.execute("migration-send", "-s", "0", "-c", "3", "-t", "1")
	if err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	if out != "Migration Send (Suspend) Successful\n" {
		t.Errorf("unexpected output %q", out)
	}
	if !h.dev.Suspended() {
		t.Fatal("expected controller suspended")
	}

	out, _, err = h.execute("migration-send", "-s", "1", "-c", "3")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if out != "Migration Send (Resume) Successful\n" {
		t.Errorf("unexpected output %q", out)
	}
	if h.dev.Suspended() {
		t.Error("expected controller resumed")
	}
}

func TestMigrationSendSetState(t *testing.T) {
	h := newHarness()
	h.dev.SetSuspended(true)
	state := emptyState()
	path := testutil.TempFile(t, "state.bin", state)

	numd := fmt.Sprint(len(state) / driver.DwordSize)
	out, _, err := h.execute("migration-send", "-s", "2", "-S", "3", "-n", numd, "-f", path)
	if err != nil {
		t.Fatalf("set controller state failed: %v", err)
	}
	if out != "Migration Send (Set Controller State) Successful\n" {
		t.Errorf("unexpected output %q", out)
	}
	testutil.AssertBytesEqual(t, h.dev.ControllerState(), state, "controller state")
}

func TestMigrationSendSetStateNeedsFile(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("migration-send", "-s", "2", "-n", "4")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestMigrationSendShortInputFile(t *testing.T) {
	h := newHarness()
	h.dev.SetSuspended(true)
	path := testutil.TempFile(t, "short.bin", make([]byte, 8))

	_, _, err := h.execute("migration-send", "-s", "2", "-n", "4", "-f", path)
	if !errors.Is(err, driver.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", err)
	}
	if h.dev.CommandCount() != 0 {
		t.Error("command submitted with a short payload")
	}
}

func TestMigrationRecvNormal(t *testing.T) {
	h := newHarness()
	h.dev.SetSuspended(true)
	state := emptyState()
	h.dev.SetControllerState(state)

	numd := fmt.Sprint(len(state) / driver.DwordSize)
	out, _, err := h.execute("migration-recv", "-c", "3", "-n", numd)
	if err != nil {
		t.Fatalf("migration-recv failed: %v", err)
	}
	if !strings.HasPrefix(out, "CDW0: 0x1: Controller Suspended\n") {
		t.Errorf("unexpected first line in %q", out)
	}
	if !strings.Contains(out, "Number of I/O Submission Queues (NIOSQ)") {
		t.Errorf("expected decoded state in output:\n%s", out)
	}
}

func TestMigrationRecvOutputFile(t *testing.T) {
	h := newHarness()
	state := emptyState()
	h.dev.SetControllerState(state)
	path := filepath.Join(t.TempDir(), "out.bin")

	numd := fmt.Sprint(len(state) / driver.DwordSize)
	out, _, err := h.execute("migration-recv", "-n", numd, "-f", path)
	if err != nil {
		t.Fatalf("migration-recv failed: %v", err)
	}
	if out != "CDW0: 0x0: Controller NOT Suspended\n" {
		t.Errorf("unexpected output %q", out)
	}
	got, err := os.ReadFile(path)
	testutil.AssertNoError(t, err, "read output file")
	testutil.AssertBytesEqual(t, got, state, "output file")
}

func TestMigrationRecvOffsetNeedsBinary(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("migration-recv", "-n", "4", "-o", "8")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	_, _, err = h.execute("migration-recv", "-n", "4", "-o", "8", "--output-format", "xml")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown format, got %v", err)
	}
	if len(h.opened) != 0 {
		t.Error("device opened for an invalid command")
	}
}

func TestSetAndGetCDQ(t *testing.T) {
	h := newHarness()
	if _, _, err := h.execute("create-cdq", "--size", "64", "--consent"); err != nil {
		t.Fatalf("create-cdq failed: %v", err)
	}

	out, _, err := h.execute("set-cdq", "-C", "1", "-H", "16", "-T", "4")
	if err != nil {
		t.Fatalf("set-cdq failed: %v", err)
	}
	if out != "Success. Head Pointer: 16\n" {
		t.Errorf("unexpected output %q", out)
	}
	if cdw11 := h.dev.LastCommand().Cdw11; cdw11 != 1|1<<31 {
		t.Errorf("cdw11 = 0x%08x", cdw11)
	}

	out, _, err = h.execute("get-cdq", "-C", "1")
	if err != nil {
		t.Fatalf("get-cdq failed: %v", err)
	}
	if out != "Head Pointer: 0x10\nTail Pointer Trigger: 0x4\n" {
		t.Errorf("unexpected output %q", out)
	}

	out, _, err = h.execute("get-cdq", "-C", "1", "-o", "json")
	if err != nil {
		t.Fatalf("get-cdq json failed: %v", err)
	}
	if !strings.Contains(out, `"head_pointer": 16`) || !strings.Contains(out, `"tail_pointer_trigger": 4`) {
		t.Errorf("unexpected json %q", out)
	}
}

func TestSetCDQWithoutTrigger(t *testing.T) {
	h := newHarness()
	if _, _, err := h.execute("create-cdq", "--size", "64", "--consent"); err != nil {
		t.Fatalf("create-cdq failed: %v", err)
	}
	if _, _, err := h.execute("set-cdq", "-C", "1", "-H", "2"); err != nil {
		t.Fatalf("set-cdq failed: %v", err)
	}
	last := h.dev.LastCommand()
	if last.Cdw11 != 1 || last.Cdw13 != 0 {
		t.Errorf("cdw11 = 0x%08x cdw13 = 0x%08x", last.Cdw11, last.Cdw13)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness()
	_, _, err := h.execute("--log-level", "loud", "delete-cdq", "-C", "1")
	if !errors.Is(err, driver.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRunProfile(t *testing.T) {
	h := newHarness()
	state := emptyState()
	h.dev.SetControllerState(state)
	dir := t.TempDir()
	output := filepath.Join(dir, "state.bin")

	profile := fmt.Sprintf(`device = "/dev/nvme7"

[[operation]]
kind = "create-cdq"
cntlid = 3
size = 64

[[operation]]
kind = "track-send"
sel = 0
cdqid = 1
start = true

[[operation]]
kind = "migration-send"
sel = 0
cntlid = 3
stype = 1

[[operation]]
kind = "migration-recv"
cntlid = 3
numd = %d
output_file = %q

[[operation]]
kind = "set-cdq"
cdqid = 1
head_pointer = 8

[[operation]]
kind = "get-cdq"
cdqid = 1
output_format = "json"
`, len(state)/driver.DwordSize, output)
	path := testutil.TempFile(t, "profile.toml", []byte(profile))

	out, _, err := h.execute("run", "--profile", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{
		"Create CDQ Successful: CDQID=0x0001\n",
		"Track Send (Log User Data Changes) Successful\n",
		"Migration Send (Suspend) Successful\n",
		"CDW0: 0x1: Controller Suspended\n",
		"Success. Head Pointer: 8\n",
		`"head_pointer": 8`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	if len(h.opened) != 1 || h.opened[0] != "/dev/nvme7" {
		t.Errorf("opened %v, expected the profile device", h.opened)
	}
	if h.dev.QueueCount() != 0 {
		t.Errorf("queue count = %d, expected queues deleted at the end of the run", h.dev.QueueCount())
	}
	got, err := os.ReadFile(output)
	testutil.AssertNoError(t, err, "read output file")
	testutil.AssertBytesEqual(t, got, state, "output file")
}

func TestRunDeviceFlagOverridesProfile(t *testing.T) {
	h := newHarness()
	path := testutil.TempFile(t, "profile.toml", []byte("device = \"/dev/nvme7\"\n"))

	if _, _, err := h.execute("run", "--profile", path, "--device", "/dev/nvme9"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(h.opened) != 1 || h.opened[0] != "/dev/nvme9" {
		t.Errorf("opened %v", h.opened)
	}
}

func TestRunStopsAtFailingStep(t *testing.T) {
	h := newHarness()
	profile := `[[operation]]
kind = "delete-cdq"
cdqid = 5

[[operation]]
kind = "migration-send"
sel = 0
stype = 1
`
	path := testutil.TempFile(t, "profile.toml", []byte(profile))

	_, _, err := h.execute("run", "--profile", path)
	if !errors.Is(err, driver.ErrDeviceStatus) {
		t.Fatalf("expected device status, got %v", err)
	}
	if !strings.Contains(err.Error(), "operation[0] (delete-cdq)") {
		t.Errorf("error does not name the step: %v", err)
	}
	if h.dev.Suspended() {
		t.Error("run continued past the failing step")
	}
}

func TestRunRequiresProfile(t *testing.T) {
	h := newHarness()
	if _, _, err := h.execute("run"); err == nil {
		t.Fatal("expected error without --profile")
	}
}

func TestTimeoutFlag(t *testing.T) {
	h := newHarness()
	if _, _, err := h.execute("migration-send", "-s", "1"); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if ms := h.dev.LastCommand().TimeoutMs; ms != driver.DefaultTimeoutMs {
		t.Errorf("default timeout = %d ms, expected %d", ms, driver.DefaultTimeoutMs)
	}

	if _, _, err := h.execute("--timeout", "1500ms", "migration-send", "-s", "1"); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if ms := h.dev.LastCommand().TimeoutMs; ms != 1500 {
		t.Errorf("timeout = %d ms, expected 1500", ms)
	}
}
