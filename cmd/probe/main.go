// probe prints the contents of a recorded session event log.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gridlink.io/internal/gamelog"
	"gridlink.io/internal/protocol"
)

func main() {
	var (
		typeFilter = flag.String("type", "", "only print messages of this type")
		raw        = flag.Bool("raw", false, "print full payloads instead of summaries")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: probe [-type T] [-raw] <events.jsonl.zst>")
		os.Exit(2)
	}

	entries, err := gamelog.Read(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	for _, e := range entries {
		if *typeFilter != "" && e.Type != *typeFilter {
			continue
		}
		if *raw {
			fmt.Printf("%s %s %s\n", e.At.Format("15:04:05.000"), e.Type, e.Payload)
			continue
		}
		fmt.Printf("%s %-18s %s\n", e.At.Format("15:04:05.000"), e.Type, summary(e.Type, e.Payload))
	}
}

func summary(msgType string, payload json.RawMessage) string {
	switch msgType {
	case protocol.TypeScreenUpdate:
		var m protocol.ScreenUpdateMsg
		if json.Unmarshal(payload, &m) == nil {
			return "screen=" + m.Screen.Type.String()
		}
	case protocol.TypeConnected:
		var m protocol.ConnectedMsg
		if json.Unmarshal(payload, &m) == nil {
			return fmt.Sprintf("target=%s screen=%s", m.TargetAddress, m.Screen.Type)
		}
	case protocol.TypeChainUpdate:
		var m protocol.ChainUpdateMsg
		if json.Unmarshal(payload, &m) == nil {
			return fmt.Sprintf("hops=%d", len(m.Chain))
		}
	case protocol.TypeTraceUpdate:
		var m protocol.TraceUpdateMsg
		if json.Unmarshal(payload, &m) == nil {
			return fmt.Sprintf("progress=%.3f active=%v", m.Progress, m.Active)
		}
	case protocol.TypeTaskUpdate:
		var m protocol.TaskUpdateMsg
		if json.Unmarshal(payload, &m) == nil {
			return fmt.Sprintf("tasks=%d", len(m.Tasks))
		}
	case protocol.TypeGameOver:
		var m protocol.GameOverMsg
		if json.Unmarshal(payload, &m) == nil {
			return "reason=" + m.Reason
		}
	}
	if len(payload) > 80 {
		return string(payload[:80]) + "..."
	}
	return string(payload)
}
