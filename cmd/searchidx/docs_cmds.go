package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	searchidx "github.com/kailas-cloud/searchidx/pkg/sdk"
)

var errBatchFailed = errors.New("some documents failed")

func newIndexCmd(a *app) *cobra.Command {
	var (
		file   string
		action string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index documents from a JSON Lines file",
		Long: "Each line is one document. A line may carry its own \"@search.action\";\n" +
			"otherwise --action applies. Use - to read standard input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open documents: %w", err)
				}
				defer f.Close()
				in = f
			}

			lines, err := readLines(in, dombatch.Action(action))
			if err != nil {
				return err
			}
			keyField := ""
			if hasDeletes(lines) {
				def, err := c.Get(cmd.Context())
				if err != nil {
					return err
				}
				kf, ok := def.KeyField()
				if !ok {
					return fmt.Errorf("index %s has no key field", c.Index())
				}
				keyField = kf.Name()
			}
			ops := make([]searchidx.Operation, 0, len(lines))
			for _, l := range lines {
				op, err := operationFor(l.action, l.doc, keyField)
				if err != nil {
					return fmt.Errorf("line %d: %w", l.n, err)
				}
				ops = append(ops, op)
			}
			res, err := c.IndexDocuments(cmd.Context(), ops)
			if err != nil {
				return err
			}
			return reportBatch(cmd.OutOrStdout(), a.logger, res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON Lines file")
	cmd.Flags().StringVar(&action, "action", string(dombatch.ActionUpload),
		"default action: upload, merge, mergeOrUpload or delete")
	return cmd
}

// docLine is one parsed line of a documents file.
type docLine struct {
	n      int
	action dombatch.Action
	doc    searchidx.Document
}

func hasDeletes(lines []docLine) bool {
	for _, l := range lines {
		if l.action == dombatch.ActionDelete {
			return true
		}
	}
	return false
}

func readLines(r io.Reader, def dombatch.Action) ([]docLine, error) {
	var lines []docLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var doc searchidx.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		action := def
		if v, ok := doc.String(dombatch.ActionKey); ok {
			action = dombatch.Action(v)
			doc = doc.Without(dombatch.ActionKey)
		}
		lines = append(lines, docLine{n: n, action: action, doc: doc})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return lines, nil
}

func operationFor(action dombatch.Action, doc searchidx.Document, keyField string) (searchidx.Operation, error) {
	switch action {
	case dombatch.ActionUpload:
		return searchidx.Upload(doc), nil
	case dombatch.ActionMerge:
		return searchidx.Merge(doc), nil
	case dombatch.ActionMergeOrUpload:
		return searchidx.MergeOrUpload(doc), nil
	case dombatch.ActionDelete:
		if keyField == "" {
			return nil, errors.New("delete needs the index key field")
		}
		key, ok := doc.String(keyField)
		if !ok {
			return nil, fmt.Errorf("delete: missing key %q", keyField)
		}
		return searchidx.Delete(keyField, key), nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func reportBatch(w io.Writer, logger *zap.Logger, res searchidx.BatchResult) error {
	failed := res.Failed()
	if _, err := fmt.Fprintf(w, "indexed %d, failed %d\n", len(res.Items())-len(failed), len(failed)); err != nil {
		return err
	}
	for _, item := range failed {
		msg, _ := item.ErrorMessage()
		logger.Warn("document failed",
			zap.String("key", item.Key()),
			zap.Int("status", item.StatusCode()),
			zap.String("message", msg),
		)
		if _, err := fmt.Fprintf(w, "  %s: %d %s\n", item.Key(), item.StatusCode(), msg); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return errBatchFailed
	}
	return nil
}

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <key>",
		Short: "Fetch one document by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			doc, err := c.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of documents in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			n, err := c.Count(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}
