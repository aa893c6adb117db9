// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags(t *testing.T) {
	var params struct {
		GlobalParams
		JSONOutput
		Listen   string        `flag:"metrics-listen" desc:"address" default:":9100"`
		Interval time.Duration `flag:"interval" default:"2s"`
		Retries  int           `flag:"retries" default:"3"`
		Roles    []string      `flag:"role" desc:"role names"`
		Untagged string
	}

	flagSet := FlagsFromParams("watch", &params)
	if params.Listen != ":9100" || params.Interval != 2*time.Second || params.Retries != 3 {
		t.Fatalf("defaults not applied: %+v", params)
	}

	err := flagSet.Parse([]string{"--json", "-v", "--interval", "500ms", "--role", "player,encoder"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !params.OutputJSON || !params.Verbose {
		t.Errorf("embedded flags not bound: %+v", params)
	}
	if params.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", params.Interval)
	}
	if len(params.Roles) != 2 || params.Roles[1] != "encoder" {
		t.Errorf("Roles = %v", params.Roles)
	}
	if flagSet.Lookup("untagged") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlagsRejectsBadInput(t *testing.T) {
	if err := BindFlags(struct{}{}, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags(non-pointer) succeeded")
	}

	var badDefault struct {
		Count int `flag:"count" default:"many"`
	}
	if err := BindFlags(&badDefault, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags(bad default) succeeded")
	}

	var unsupported struct {
		Ratio complex64 `flag:"ratio"`
	}
	if err := BindFlags(&unsupported, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags(unsupported type) succeeded")
	}
}

func TestEmitJSON(t *testing.T) {
	var buffer bytes.Buffer

	off := JSONOutput{}
	done, err := off.EmitJSON(&buffer, []string{"x"})
	if done || err != nil || buffer.Len() != 0 {
		t.Fatalf("EmitJSON without --json = (%v, %v), wrote %q", done, err, buffer.String())
	}

	on := JSONOutput{OutputJSON: true}
	var names []string
	done, err = on.EmitJSON(&buffer, names)
	if !done || err != nil {
		t.Fatalf("EmitJSON with --json = (%v, %v)", done, err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q, want []", buffer.String())
	}
}

func TestToolErrorHint(t *testing.T) {
	err := Transient("jack: server not running").WithHint("start the server and try again")
	want := "jack: server not running\n\nstart the server and try again"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Category != CategoryTransient {
		t.Errorf("Category = %q", err.Category)
	}
	if Internal("bug").Error() != "bug" {
		t.Error("empty hint changed the message")
	}
}
