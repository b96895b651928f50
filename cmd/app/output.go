package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func light(o domain.BusinessObjectLight) string {
	return fmt.Sprintf("%s [%s]", o.Name, o.ClassName)
}

func printObject(o domain.BusinessObject) {
	rows := [][2]string{
		{"id", o.ID},
		{"class", o.ClassName},
		{"name", o.Name},
		{"parent", o.ParentID},
		{"special", fmt.Sprint(o.Special)},
		{"updated_at", formatTime(o.UpdatedAt)},
	}
	keys := make([]string, 0, len(o.Attributes))
	for k := range o.Attributes {
		if k != domain.AttributeName {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, [2]string{k, o.Attributes[k]})
	}
	printKV(rows)
}

func printObjects(items []domain.BusinessObject) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.ClassName, item.Name, item.ParentID})
	}
	printTable([]string{"ID", "CLASS", "NAME", "PARENT"}, rows)
}

func printClasses(items []domain.ClassMetadata) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Name, item.ParentName, fmt.Sprint(item.Abstract), item.DisplayName})
	}
	printTable([]string{"NAME", "PARENT", "ABSTRACT", "DISPLAY"}, rows)
}

func printActions(items []actions.Action) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		params := make([]string, 0, len(item.Parameters))
		for _, p := range item.Parameters {
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		rows = append(rows, []string{item.ID, item.Name, strings.Join(params, ",")})
	}
	printTable([]string{"ID", "NAME", "PARAMETERS"}, rows)
}

func printResponse(resp actions.Response) {
	fmt.Printf("%s: %s\n", resp.Status, resp.Message)
}

func printPath(path domain.PhysicalPath) {
	parts := make([]string, 0, len(path))
	for _, o := range path {
		parts = append(parts, light(o))
	}
	if len(parts) == 0 {
		fmt.Println("no results")
		return
	}
	fmt.Println(strings.Join(parts, " -> "))
}

func printTree(nodes []domain.PhysicalTreeNode) {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		next := make([]string, 0, len(n.Next))
		for _, o := range n.Next {
			next = append(next, light(o))
		}
		rows = append(rows, []string{light(n.Object), strings.Join(next, ", ")})
	}
	printTable([]string{"OBJECT", "NEXT"}, rows)
}

func names(items []domain.BusinessObjectLight) string {
	out := make([]string, 0, len(items))
	for _, o := range items {
		out = append(out, o.Name)
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func printPortMirrors(items []application.PortMirrors) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{light(item.Port), names(item.Mirrors), names(item.MultipleMirrors)})
	}
	printTable([]string{"PORT", "MIRROR", "MULTIPLE_MIRROR"}, rows)
}

func printSuggestion(s application.MirrorSuggestion) {
	rows := make([][]string, 0, len(s.Pairs))
	for _, p := range s.Pairs {
		rows = append(rows, []string{light(p.Source), light(p.Target)})
	}
	printTable([]string{"SOURCE", "TARGET"}, rows)
	if s.Info != "" {
		fmt.Println(s.Info)
	}
}

func printMultipleSuggestion(s application.MultipleMirrorSuggestion) {
	rows := make([][]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		rows = append(rows, []string{light(g.Source), names(g.Targets)})
	}
	printTable([]string{"SOURCE", "TARGETS"}, rows)
	if s.Info != "" {
		fmt.Println(s.Info)
	}
}

func printActivity(items []domain.ActivityLogEntry) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			formatTime(item.CreatedAt),
			item.ActorEmail,
			item.Type,
			item.ObjectID,
			item.AffectedProperty,
			item.NewValue,
			item.Notes,
		})
	}
	printTable([]string{"AT", "ACTOR", "TYPE", "OBJECT", "PROPERTY", "NEW", "NOTES"}, rows)
}
