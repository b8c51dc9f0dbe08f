package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/media_session/internal/core"
	"github.com/mikey-austin/media_session/pkg/msp"
)

// HumanPrinter prints human-readable output. Catalog listings render as pterm
// trees and server listings as tables.
type HumanPrinter struct {
	Out io.Writer
}

// DisableStyling turns off pterm colors for plain terminals and pipes.
func DisableStyling() {
	pterm.DisableStyling()
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := writerOrStdout(p.Out)
	switch data := v.(type) {
	case core.ServersResult:
		return printServers(out, data)
	case core.ConnectResult:
		return printConnect(out, data)
	case core.ItemResult:
		return printItem(out, data)
	case core.ChildrenResult:
		return printChildren(out, data)
	case core.CustomResult:
		return printCustom(out, data)
	case core.QueueResult:
		return printQueue(out, data)
	case core.PushResult:
		return printPush(out, data.Push)
	default:
		_, err := fmt.Fprintln(out, "ok")
		return err
	}
}

func printServers(out io.Writer, result core.ServersResult) error {
	data := pterm.TableData{{"NAME", "NODE_ID", "PROTOCOL"}}
	for _, server := range result.Servers {
		version := ""
		if v, ok := server.Caps["protocolVersion"]; ok {
			version = fmt.Sprint(v)
		}
		data = append(data, []string{server.Name, server.NodeID, version})
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}

func printConnect(out io.Writer, result core.ConnectResult) error {
	_, err := fmt.Fprintf(out, "session %s on %s (protocol %d)\n", result.Session.SessionID, result.ServerID, result.Session.ProtocolVersion)
	if err != nil {
		return err
	}
	if len(result.Session.AllowedCommands) > 0 {
		if _, err := fmt.Fprintf(out, "commands: %s\n", strings.Join(result.Session.AllowedCommands, ", ")); err != nil {
			return err
		}
	}
	if len(result.Session.AllowedPlayerCommands) > 0 {
		if _, err := fmt.Fprintf(out, "player: %s\n", strings.Join(result.Session.AllowedPlayerCommands, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func printItem(out io.Writer, result core.ItemResult) error {
	item := result.Item
	if _, err := fmt.Fprintln(out, formatItem(item)); err != nil {
		return err
	}
	if item.Source == nil {
		return nil
	}
	_, err := fmt.Fprintf(out, "  %s\t%s\n", item.Source.URL, item.Source.Mime)
	return err
}

func printChildren(out io.Writer, result core.ChildrenResult) error {
	root := pterm.TreeNode{Text: result.ParentID}
	for _, item := range result.Items {
		root.Children = append(root.Children, pterm.TreeNode{Text: formatItem(item)})
	}
	rendered, err := pterm.DefaultTree.WithRoot(root).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func printCustom(out io.Writer, result core.CustomResult) error {
	state := "applied"
	if !result.Applied {
		state = "no change"
	}
	_, err := fmt.Fprintf(out, "%s: %s\n", result.Identifier, state)
	return err
}

func printQueue(out io.Writer, result core.QueueResult) error {
	root := pterm.TreeNode{Text: fmt.Sprintf("queued %d", len(result.Items))}
	for _, item := range result.Items {
		root.Children = append(root.Children, pterm.TreeNode{Text: formatItem(item)})
	}
	rendered, err := pterm.DefaultTree.WithRoot(root).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func printPush(out io.Writer, push msp.PushEnvelope) error {
	switch push.Type {
	case msp.PushLayout:
		var body msp.LayoutPush
		if err := json.Unmarshal(push.Body, &body); err != nil {
			return err
		}
		labels := make([]string, 0, len(body.Buttons))
		for _, button := range body.Buttons {
			labels = append(labels, fmt.Sprintf("%s (%s)", button.Label, button.Identifier))
		}
		_, err := fmt.Fprintf(out, "layout: %s\n", strings.Join(labels, ", "))
		return err
	case msp.PushChildrenChanged:
		var body msp.ChildrenChangedPush
		if err := json.Unmarshal(push.Body, &body); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "children: %s has %d\n", body.ParentID, body.ChildCount)
		return err
	case msp.PushCues:
		var body msp.CueGroup
		if err := json.Unmarshal(push.Body, &body); err != nil {
			return err
		}
		texts := make([]string, 0, len(body.Cues))
		for _, cue := range body.Cues {
			texts = append(texts, cue.Text)
		}
		_, err := fmt.Fprintf(out, "cues @%dus: %s\n", body.PresentationTimeUS, strings.Join(texts, " | "))
		return err
	default:
		_, err := fmt.Fprintf(out, "%s: %s\n", push.Type, string(push.Body))
		return err
	}
}

func formatItem(item msp.MediaItem) string {
	title := item.Title
	if title == "" {
		title = item.ID
	}
	var tags []string
	if item.Browsable {
		tags = append(tags, fmt.Sprintf("%d children", item.Children))
	}
	if item.Playable {
		tags = append(tags, "playable")
	}
	if item.Source != nil && item.Source.Artist != "" {
		title = fmt.Sprintf("%s - %s", item.Source.Artist, title)
	}
	if item.ID != "" && item.ID != title {
		title = fmt.Sprintf("%s [%s]", title, item.ID)
	}
	if len(tags) == 0 {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, strings.Join(tags, ", "))
}
