package params

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(t *testing.T) {
	t.Helper()
	origNow, origSalt := now, newSalt
	now = func() time.Time { return time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC) }
	newSalt = func() string { return "ab12c" }
	t.Cleanup(func() { now, newSalt = origNow, origSalt })
}

func minimalBuild() map[string]any {
	return map[string]any{
		GitURI:    "https://src.example.com/rpms/app.git",
		GitRef:    "0123456789abcdef",
		User:      "alice",
		Component: "app",
	}
}

func TestSetParamsRejectsUnknownNamesTogether(t *testing.T) {
	s := BuildUserParams.New()
	kv := minimalBuild()
	kv["bogus"] = 1
	kv["also_bogus"] = "x"

	err := s.SetParams(kv)
	var unknown *UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownParameterError, got %v", err)
	}
	if diff := cmp.Diff([]string{"also_bogus", "bogus"}, unknown.Names); diff != "" {
		t.Errorf("unknown names (-want +got):\n%s", diff)
	}
	if s.IsSet(GitURI) {
		t.Error("nothing should be written when unknown names are present")
	}
}

func TestValidateReportsAllMissingRequired(t *testing.T) {
	s := BuildUserParams.New()
	err := s.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"component is required",
		"git_ref is required",
		"git_uri is required",
		"user is required",
	}
	if diff := cmp.Diff(want, verr.Issues); diff != "" {
		t.Errorf("issues (-want +got):\n%s", diff)
	}
}

func TestValidatePassesWhenRequiredSet(t *testing.T) {
	fixedClock(t)
	s := BuildUserParams.New()
	if err := s.SetParams(minimalBuild()); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestVariationsMutuallyExclusive(t *testing.T) {
	pairs := [][2]string{
		{Scratch, Isolated},
		{Scratch, IsAuto},
		{Isolated, IsAuto},
	}
	for _, p := range pairs {
		t.Run(p[0]+"+"+p[1], func(t *testing.T) {
			fixedClock(t)
			kv := minimalBuild()
			kv[p[0]] = true
			kv[p[1]] = true
			err := BuildUserParams.New().SetParams(kv)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), "mutually exclusive") {
				t.Errorf("unexpected message: %v", err)
			}
		})
	}
}

func TestVariationOf(t *testing.T) {
	tests := []struct {
		flag string
		want Variation
	}{
		{"", Ordinary},
		{Scratch, ScratchBuild},
		{Isolated, IsolatedBuild},
		{IsAuto, AutoTriggered},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			fixedClock(t)
			kv := minimalBuild()
			if tt.flag != "" {
				kv[tt.flag] = true
			}
			s := BuildUserParams.New()
			if err := s.SetParams(kv); err != nil {
				t.Fatalf("SetParams: %v", err)
			}
			if got := VariationOf(s); got != tt.want {
				t.Errorf("VariationOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImageTagPrecomputed(t *testing.T) {
	fixedClock(t)
	kv := minimalBuild()
	kv[KojiTarget] = "f40-container"
	kv[Platform] = "x86_64"
	s := BuildUserParams.New()
	if err := s.SetParams(kv); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	want := "alice/app:f40-container-ab12c-20240305102030-x86_64"
	if got := s.String(ImageTag); got != want {
		t.Errorf("image_tag = %q, want %q", got, want)
	}

	salt, ts, ok := UniqueTagSuffix(want, "x86_64")
	if !ok || salt != "ab12c" || ts != "20240305102030" {
		t.Errorf("UniqueTagSuffix = %q %q %v", salt, ts, ok)
	}
}

func TestImageTagDefaultsTargetToNone(t *testing.T) {
	fixedClock(t)
	s := BuildUserParams.New()
	if err := s.SetParams(minimalBuild()); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if got := s.String(ImageTag); got != "alice/app:none-ab12c-20240305102030" {
		t.Errorf("image_tag = %q", got)
	}
}

func TestImageTagKeepsCallerValue(t *testing.T) {
	fixedClock(t)
	kv := minimalBuild()
	kv[ImageTag] = "custom/tag:1"
	s := BuildUserParams.New()
	if err := s.SetParams(kv); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if got := s.String(ImageTag); got != "custom/tag:1" {
		t.Errorf("image_tag = %q", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	fixedClock(t)
	kv := minimalBuild()
	kv[ComposeIDs] = []int{3, 1}
	kv[AdditionalTags] = []string{"a", "b"}
	kv[Isolated] = true
	kv[Release] = "1.2"
	kv[KojiTaskID] = 99
	s := BuildUserParams.New()
	if err := s.SetParams(kv); err != nil {
		t.Fatalf("SetParams: %v", err)
	}

	blob, err := s.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !s.Equal(back) {
		t.Errorf("round trip mismatch:\n%s", blob)
	}
}

func TestSerializeOmitsSiteParams(t *testing.T) {
	fixedClock(t)
	kv := minimalBuild()
	kv[KojiHub] = "https://koji.example.com/kojihub"
	kv[RegistryURIs] = []string{"registry.example.com/v2"}
	s := BuildUserParams.New()
	if err := s.SetParams(kv); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	blob, err := s.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if strings.Contains(string(blob), KojiHub) || strings.Contains(string(blob), RegistryURIs) {
		t.Errorf("site params leaked into serialized form: %s", blob)
	}
	if !strings.Contains(string(blob), `"kind":"BuildUserParams"`) {
		t.Errorf("missing discriminator: %s", blob)
	}
}

func TestDeserializeEmptyAndMalformed(t *testing.T) {
	s, err := BuildUserParams.Deserialize(nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if len(s.values) != 0 {
		t.Errorf("expected empty set, got %v", s.values)
	}

	_, err = BuildUserParams.Deserialize([]byte(`{"user": `))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestDeserializeDropsUnknownFields(t *testing.T) {
	s, err := BuildUserParams.Deserialize([]byte(`{"kind":"BuildUserParams","user":"bob","retired_param":true}`))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if s.String(User) != "bob" {
		t.Errorf("user = %q", s.String(User))
	}
	if s.IsSet("retired_param") {
		t.Error("unknown field should be dropped")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"Nope"}`))
	var kerr *UnknownKindError
	if !errors.As(err, &kerr) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}
}

func TestBuildIDTruncatesAndValidates(t *testing.T) {
	s := BuildUserParams.New()
	long := strings.Repeat("a", 80)
	if err := s.Set(Name, long); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.String(Name); len(got) != BuildIDMaxLength {
		t.Errorf("len(name) = %d, want %d", len(got), BuildIDMaxLength)
	}

	err := s.Set(Name, "-bad-")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDefaultsAndCoercion(t *testing.T) {
	s := BuildUserParams.New()
	if diff := cmp.Diff([]string{"v1", "v2"}, s.Strings(RegistryAPIVersions)); diff != "" {
		t.Errorf("registry_api_versions default (-want +got):\n%s", diff)
	}
	if !s.Bool(VerifySSL) {
		t.Error("verify_ssl should default to true")
	}
	if err := s.Set(KojiTaskID, "42"); err != nil {
		t.Fatalf("Set koji_task_id: %v", err)
	}
	if n, ok := s.Int(KojiTaskID); !ok || n != 42 {
		t.Errorf("koji_task_id = %d %v", n, ok)
	}
	if err := s.Set(Scratch, "yes please"); err == nil {
		t.Error("expected bool coercion failure")
	}
}

func TestDefineRejectsMismatchedKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Define("Broken", nil, map[string]Descriptor{"a": Param("b", String)})
}

func TestChildInheritsParentDescriptors(t *testing.T) {
	if _, ok := SourceContainerUserParams.Descriptor(User); !ok {
		t.Error("SourceContainerUserParams should inherit user")
	}
	if _, ok := SourceContainerUserParams.Descriptor(GitURI); ok {
		t.Error("SourceContainerUserParams must not see BuildUserParams parameters")
	}
}

func TestParseRegistryURI(t *testing.T) {
	tests := []struct {
		in   string
		want RegistryURI
		str  string
	}{
		{"registry.example.com", RegistryURI{DockerURI: "registry.example.com", Version: "v1"}, "registry.example.com/v1"},
		{"https://registry.example.com/v2", RegistryURI{Scheme: "https://", DockerURI: "registry.example.com", Version: "v2"}, "https://registry.example.com/v2"},
		{"localhost:5000/v2/", RegistryURI{DockerURI: "localhost:5000", Version: "v2"}, "localhost:5000/v2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseRegistryURI(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRegistryURI (-want +got):\n%s", diff)
			}
			if got.String() != tt.str {
				t.Errorf("String() = %q, want %q", got.String(), tt.str)
			}
		})
	}
}
