package workspace

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/driver"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// BinaryFor resolves which IaC tool binary to invoke: the partition's
// explicit terraform.tool if set, otherwise auto-detected on PATH,
// preferring "terraform" for backend: terraform and "tofu" otherwise.
func BinaryFor(partition domain.PartitionDecl) (string, error) {
	if partition.Terraform.Tool != "" {
		if _, err := exec.LookPath(partition.Terraform.Tool); err != nil {
			return "", nclaverr.NewIacError("configured tool %s not found on PATH", partition.Terraform.Tool).WithErr(err)
		}
		return partition.Terraform.Tool, nil
	}

	preferred := "tofu"
	if partition.Backend == domain.BackendTerraform {
		preferred = "terraform"
	}
	if _, err := exec.LookPath(preferred); err == nil {
		return preferred, nil
	}

	fallback := "terraform"
	if preferred == "terraform" {
		fallback = "tofu"
	}
	if _, err := exec.LookPath(fallback); err == nil {
		return fallback, nil
	}

	return "", nclaverr.NewIacError("neither terraform nor tofu found on PATH")
}

// Apply runs init+apply+output in workspaceDir and returns the combined
// log, exit status, and (on success) the parsed outputs projected down
// to declaredOutputs.
func Apply(ctx context.Context, binary, workspaceDir string, backend BackendConfig, bearerToken string, authEnv driver.AuthEnv, declaredOutputs []string) (RunResult, map[string]string, error) {
	env := baseEnv(bearerToken, authEnv)

	initArgs := append([]string{"init", "-reconfigure"}, backend.BackendConfigArgs()...)
	initResult := Run(ctx, binary, workspaceDir, initArgs, env)
	if err := UnwrapIacError(binary, initResult); err != nil {
		return initResult, nil, err
	}

	applyResult := Run(ctx, binary, workspaceDir, []string{"apply", "-auto-approve", "-no-color"}, env)
	combined := RunResult{
		Log:      initResult.Log + PhaseSeparator + applyResult.Log,
		ExitCode: applyResult.ExitCode,
		TimedOut: applyResult.TimedOut,
	}
	if err := UnwrapIacError(binary, applyResult); err != nil {
		return combined, nil, err
	}

	outputResult := Run(ctx, binary, workspaceDir, []string{"output", "-json"}, env)
	if err := UnwrapIacError(binary, outputResult); err != nil {
		return combined, nil, err
	}

	outputs, err := ParseOutputs([]byte(outputResult.Log), declaredOutputs)
	if err != nil {
		return combined, nil, err
	}

	return combined, outputs, nil
}

// Destroy runs `terraform destroy` in workspaceDir.
func Destroy(ctx context.Context, binary, workspaceDir string, bearerToken string, authEnv driver.AuthEnv) (RunResult, error) {
	env := baseEnv(bearerToken, authEnv)
	result := Run(ctx, binary, workspaceDir, []string{"destroy", "-auto-approve", "-no-color"}, env)
	return result, UnwrapIacError(binary, result)
}

func baseEnv(bearerToken string, authEnv driver.AuthEnv) map[string]string {
	env := map[string]string{
		"TF_IN_AUTOMATION": "1",
		"TF_INPUT":         "0",
		"TF_HTTP_PASSWORD": bearerToken,
	}
	for k, v := range authEnv {
		env[k] = v
	}
	return env
}

// RunId generates an identifier for an IacRun record, formatted for
// readability in the store's run history.
func RunId(enclave domain.EnclaveId, partition domain.PartitionId, startedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%d", enclave, partition, startedAt.UnixNano())
}
