package render

import (
	log "github.com/sirupsen/logrus"

	"github.com/sofmeright/buildfreight/src/manifest"
	"github.com/sofmeright/buildfreight/src/params"
	"github.com/sofmeright/buildfreight/src/pipeline"
)

// SecretTarget is the plugin argument a secret's mount path is written to.
// An empty Arg binds the secret whether or not the plugin is present.
type SecretTarget struct {
	Phase  string
	Plugin string
	Arg    string
}

// SecretRequest asks for one or more secrets to be mounted for a target.
type SecretRequest struct {
	Target SecretTarget
	Names  []string

	// MountPath overrides the default mount path. Only meaningful with a
	// single name.
	MountPath string
}

// BindSecrets records the requested secret mounts on m and writes the mount
// paths into the plugin arguments that ask for them. A secret is mounted at
// most once. When nothing ends up bound the secrets collection is removed.
func BindSecrets(m *manifest.Manifest, p *pipeline.Template, requests []SecretRequest, logger *log.Entry) error {
	bound := map[string]string{}
	for _, b := range m.Secrets() {
		bound[b.SecretName] = b.MountPath
	}

	for _, req := range requests {
		t := req.Target
		if t.Arg != "" && !p.HasPlugin(t.Phase, t.Plugin) {
			continue
		}
		var paths []string
		for _, name := range req.Names {
			if name == "" {
				continue
			}
			mount, ok := bound[name]
			if !ok {
				mount = req.MountPath
				if mount == "" {
					mount = manifest.DefaultMountPath(name)
				}
				m.AddSecret(name, mount)
				bound[name] = mount
				if logger != nil {
					logger.WithFields(log.Fields{"secret": name, "mount_path": mount, "plugin": t.Plugin}).Debug("bound secret")
				}
			}
			paths = append(paths, mount)
		}
		if t.Arg == "" || len(paths) == 0 {
			continue
		}
		var value any = paths[0]
		if len(paths) > 1 {
			value = paths
		}
		if err := p.SetArg(t.Phase, t.Plugin, t.Arg, value); err != nil {
			return err
		}
	}

	if len(bound) == 0 {
		m.RemoveSecrets()
	}
	return nil
}

// secretRequests lists the secrets a build asks for.
func (s *state) secretRequests() []SecretRequest {
	var reqs []SecretRequest
	if certs := s.str(params.KojiCertsSecret); certs != "" {
		for _, plugin := range []string{PluginKoji, PluginKojiParent, PluginBumpRelease, PluginAddFilesystem, PluginKojiImport, PluginKojiPromote, PluginKojiTagBuild, PluginKojiUpload, PluginFetchSources} {
			reqs = append(reqs, SecretRequest{
				Target: SecretTarget{Phase: phaseOf(plugin), Plugin: plugin, Arg: "koji_ssl_certs"},
				Names:  []string{certs},
			})
		}
	}
	if pulp := s.str(params.PulpSecret); pulp != "" {
		for _, plugin := range []string{PluginPulpPush, PluginPulpSync, PluginPulpPublish} {
			reqs = append(reqs, SecretRequest{
				Target: SecretTarget{Phase: phaseOf(plugin), Plugin: plugin, Arg: "pulp_secret_path"},
				Names:  []string{pulp},
			})
		}
	}

	reqs = append(reqs, s.registrySecretRequests()...)

	if oidc := s.str(params.ODCSOpenIDCSecret); oidc != "" {
		reqs = append(reqs, SecretRequest{
			Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: PluginResolveComposes, Arg: "odcs_openidc_secret_path"},
			Names:  []string{oidc},
		})
	}
	if ssl := s.str(params.ODCSSSLSecret); ssl != "" {
		reqs = append(reqs, SecretRequest{
			Target: SecretTarget{Phase: pipeline.PreBuild, Plugin: PluginResolveComposes, Arg: "odcs_ssl_secret_path"},
			Names:  []string{ssl},
		})
	}

	tokens := s.params.StringMap(params.TokenSecrets)
	for _, name := range sortedKeys(tokens) {
		reqs = append(reqs, SecretRequest{
			Target:    SecretTarget{Phase: pipeline.PreBuild, Plugin: PluginReactorConfig},
			Names:     []string{name},
			MountPath: tokens[name],
		})
	}
	return reqs
}

// registrySecretRequests binds the registry secrets unconditionally. They
// are read per registry entry, not from one argument.
func (s *state) registrySecretRequests() []SecretRequest {
	names := s.params.Strings(params.RegistrySecrets)
	if len(names) == 0 {
		return nil
	}
	return []SecretRequest{{
		Target: SecretTarget{Phase: pipeline.PostBuild, Plugin: PluginTagAndPush},
		Names:  names,
	}}
}

// mountPath returns where a secret is mounted: its recorded binding, else
// the default path.
func (s *state) mountPath(name string) string {
	for _, b := range s.manifest.Secrets() {
		if b.SecretName == name {
			return b.MountPath
		}
	}
	return manifest.DefaultMountPath(name)
}

// renderRegistrySecrets mounts the registry secrets before the registry
// rules write their paths into per-registry entries.
func renderRegistrySecrets(s *state) error {
	return BindSecrets(s.manifest, s.pipeline, s.registrySecretRequests(), s.ruleLog())
}

func renderSecrets(s *state) error {
	return BindSecrets(s.manifest, s.pipeline, s.secretRequests(), s.ruleLog())
}
