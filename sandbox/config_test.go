// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "testing"

func TestTaskValidate(t *testing.T) {
	valid := Task{
		TaskID:      "task-1",
		GitURL:      "http://tunnel.example/task-1.git",
		GitToken:    "bearer-token",
		Tool:        "claude",
		Description: "fix typo",
		OAuthToken:  "token",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid task: %v", err)
	}

	cases := []Task{
		{},
		{TaskID: "t", GitURL: "u", GitToken: "g", Tool: "claude"},
		{TaskID: "t", GitURL: "u", GitToken: "g", Tool: "not-a-tool", OAuthToken: "x"},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestTaskContainerName(t *testing.T) {
	task := Task{TaskID: "abc123"}
	if got, want := task.ContainerName(), "hokipoki-abc123"; got != want {
		t.Errorf("ContainerName() = %q, want %q", got, want)
	}
}

func TestDefaultResources(t *testing.T) {
	r := DefaultResources()
	if !r.HasLimits() {
		t.Error("DefaultResources() should have limits")
	}
	if r.MemoryMax != "1G" {
		t.Errorf("MemoryMax = %q, want %q", r.MemoryMax, "1G")
	}
	if r.TasksMax != 200 {
		t.Errorf("TasksMax = %d, want 200", r.TasksMax)
	}
	if !r.NoSwap {
		t.Error("NoSwap should be true")
	}
}

func TestDefaultTmpfsMounts(t *testing.T) {
	mounts := DefaultTmpfsMounts()
	if len(mounts) != 2 {
		t.Fatalf("expected 2 tmpfs mounts, got %d", len(mounts))
	}
	if mounts[0].Destination != "/workspace" || mounts[0].Mode != 0755 {
		t.Errorf("unexpected /workspace mount: %+v", mounts[0])
	}
	if mounts[1].Destination != "/tmp" || mounts[1].Mode != 01777 {
		t.Errorf("unexpected /tmp mount: %+v", mounts[1])
	}
}

func TestLUKSDeviceCgroupRules(t *testing.T) {
	rules := LUKSDeviceCgroupRules()
	majors := map[int]bool{}
	for _, r := range rules {
		majors[r.Major] = true
	}
	if !majors[7] || !majors[10] {
		t.Errorf("expected device-cgroup rules for majors 7 and 10, got %+v", rules)
	}
}
