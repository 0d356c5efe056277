package command

import (
	"os/exec"
	"path/filepath"
	"strings"
)

const kubectlInstallInstructions = `To install kubectl on Ubuntu, run the following commands:

1. Update the apt package index and install required packages:
   sudo apt-get update
   sudo apt-get install -y apt-transport-https ca-certificates curl

2. Download the Kubernetes public signing key:
   curl -fsSL https://pkgs.k8s.io/core:/stable:/v1.31/deb/Release.key | sudo gpg --dearmor -o /etc/apt/keyrings/kubernetes-apt-keyring.gpg

3. Add the Kubernetes apt repository:
   echo "deb [signed-by=/etc/apt/keyrings/kubernetes-apt-keyring.gpg] https://pkgs.k8s.io/core:/stable:/v1.31/deb/ /" | sudo tee /etc/apt/sources.list.d/kubernetes.list

4. Update apt package index and install kubectl:
   sudo apt-get update
   sudo apt-get install -y kubectl

5. Verify installation:
   kubectl version --client`

// knownTools maps executables that must be installed on the host separately
// to instructions for installing them.
var knownTools = map[string]string{
	"kubectl": kubectlInstallInstructions,
}

// RequiredTool reports the known external tool the command template runs, if any.
func RequiredTool(template string) (string, bool) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return "", false
	}

	name := filepath.Base(fields[0])
	if _, ok := knownTools[name]; !ok {
		return "", false
	}
	return name, true
}

// InstallInstructions returns how to install a known tool, or "" for unknown ones.
func InstallInstructions(tool string) string {
	return knownTools[tool]
}

// MissingTool returns the known tool the template depends on when it cannot
// be found on PATH.
func MissingTool(template string) (string, bool) {
	return missingTool(template, exec.LookPath)
}

func missingTool(template string, lookPath func(string) (string, error)) (string, bool) {
	tool, ok := RequiredTool(template)
	if !ok {
		return "", false
	}
	if _, err := lookPath(tool); err != nil {
		return tool, true
	}
	return "", false
}
