package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hivedesk/onboarding/backend/model"
	"github.com/hivedesk/onboarding/portal/api"
	"github.com/hivedesk/onboarding/portal/notify"
	"github.com/hivedesk/onboarding/portal/workflow"
)

func (a *app) loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("HIVEDESK_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = line
			}

			s, err := api.New(a.apiURL).Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.store.Save(s); err != nil {
				return err
			}
			a.log.Debug("session saved", "path", a.store.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s), session valid until %s\n",
				s.Username, s.Role, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (or set HIVEDESK_PASSWORD, or type it when asked)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			u, err := c.Me(cmd.Context())
			if err != nil {
				return a.checkAuth(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", u.Username, u.Role)
			if u.Name != "" {
				fmt.Fprintf(out, "name:        %s\n", u.Name)
			}
			if u.EmployeeID != "" {
				fmt.Fprintf(out, "employee id: %s\n", u.EmployeeID)
			}
			return nil
		},
	}
}

func (a *app) docsCmd() *cobra.Command {
	docs := &cobra.Command{
		Use:   "docs",
		Short: "Browse uploaded documents",
	}

	var page, pageSize int
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents, everyone's for HR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			p, err := c.ListDocuments(cmd.Context(), page, pageSize)
			if err != nil {
				return a.checkAuth(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMPLOYEE\tTYPE\tNAME\tSTATUS\tCONFIDENCE\tUPLOADED")
			for _, d := range p.Documents {
				name := d.OriginalFilename
				if d.CustomName != "" {
					name = d.CustomName
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					d.DocumentID, d.EmployeeID, d.DocumentType, name, d.VerificationStatus,
					percent(d.ConfidenceScore), d.UploadedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d documents\n", p.Page, len(p.Documents), p.Total)
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "Documents per page (max 100)")

	docs.AddCommand(list)
	return docs
}

func (a *app) uploadCmd() *cobra.Command {
	var docType, name string
	var parallel int

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload documents and wait for their verification",
		Long: `Upload one or more files, each as its own document.

Files are uploaded concurrently. Every successful upload is sent for AI
verification; the command waits for all verdicts and prints a summary.
With --name the files are uploaded as custom documents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && docType != "" {
				t, err := model.ParseDocumentType(docType)
				if err != nil {
					return err
				}
				docType = string(t)
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			return a.runUpload(cmd.Context(), cmd.OutOrStdout(), c, args, docType, name, parallel)
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type: pan, aadhaar, resume, offer_letter, pf_form, photo, other")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Upload as a custom document with this name")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Maximum concurrent uploads")
	return cmd
}

type uploadJob struct {
	path   string
	slotID string
	err    error
}

func (a *app) runUpload(ctx context.Context, out io.Writer, client workflow.API, paths []string, docType, name string, parallel int) error {
	rec := &notify.Recorder{}
	m := workflow.New(client,
		workflow.WithNotifier(notify.Multi{notify.LogNotifier{Logger: a.log}, rec}),
		workflow.WithVerifyDelay(a.verifyDelay),
		workflow.WithLogger(a.log),
	)
	defer m.Close()

	jobs := make([]*uploadJob, len(paths))
	for i, p := range paths {
		job := &uploadJob{path: p}
		if name != "" {
			label := name
			if len(paths) > 1 {
				label = fmt.Sprintf("%s (%d)", name, i+1)
			}
			s, err := m.AddCustom(label)
			if err != nil {
				return err
			}
			job.slotID = s.ID
		} else {
			job.slotID = fmt.Sprintf("file-%d", i+1)
			m.Seed(workflow.Slot{ID: job.slotID, Name: filepath.Base(p), DocumentType: docType})
		}
		jobs[i] = job
	}

	if parallel < 1 {
		parallel = 1
	}
	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, job := range jobs {
		g.Go(func() error {
			file, f, err := openFile(job.path)
			if err != nil {
				job.err = err
				failed.Add(1)
				return nil
			}
			defer f.Close()

			// Upload failures are reported per file; they do not stop the others.
			if err := m.Upload(gctx, job.slotID, file); err != nil {
				job.err = err
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.Wait()

	printSummary(out, m, jobs)

	if n := failed.Load(); n > 0 {
		for _, job := range jobs {
			if api.IsUnauthorized(job.err) {
				return a.checkAuth(job.err)
			}
		}
		return fmt.Errorf("%d of %d uploads failed", n, len(jobs))
	}
	return nil
}

func printSummary(out io.Writer, m *workflow.Manager, jobs []*uploadJob) {
	p := m.Progress()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tDOCUMENT\tCONFIDENCE\tNOTES")
	for _, job := range jobs {
		s, _ := m.Slot(job.slotID)
		status, confidence, notes := string(s.Status), "-", ""
		if job.err != nil {
			status, notes = "failed", job.err.Error()
		}
		if an, ok := m.Analysis(job.slotID); ok {
			confidence = fmt.Sprintf("%d%%", an.Percent())
			notes = an.AnalysisNotes
			if len(an.Issues) > 0 {
				notes += " (" + strings.Join(an.Issues, ", ") + ")"
			}
		}
		document := s.DocumentID
		if document == "" {
			document = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", job.path, status, document, confidence, notes)
	}
	tw.Flush()
	fmt.Fprintf(out, "%d/%d verified, %d pending review, %d not uploaded\n", p.Verified, p.Total, p.Pending, p.Required)
}

func (a *app) analyzeCmd() *cobra.Command {
	var docType, name string

	cmd := &cobra.Command{
		Use:   "analyze DOC_ID",
		Short: "Run AI verification for an uploaded document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			meta := workflow.Slot{DocumentType: docType, CustomName: name, Custom: name != ""}.Metadata()
			res, err := c.AnalyzeDocument(cmd.Context(), args[0], meta)
			if err != nil {
				return a.checkAuth(err)
			}
			printAnalysis(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type sent with the request")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Custom document name")
	return cmd
}

func printAnalysis(out io.Writer, a api.Analysis) {
	fmt.Fprintf(out, "document:   %s (%s)\n", a.DocumentID, a.DocumentType)
	fmt.Fprintf(out, "status:     %s\n", strings.ToUpper(a.VerificationStatus))
	fmt.Fprintf(out, "confidence: %s\n", percent(a.ConfidenceScore))
	if a.AnalysisNotes != "" {
		fmt.Fprintf(out, "notes:      %s\n", a.AnalysisNotes)
	}
	for _, issue := range a.Issues {
		fmt.Fprintf(out, "issue:      %s\n", issue)
	}
	if len(a.ExtractedData) > 0 {
		keys := make([]string, 0, len(a.ExtractedData))
		for k := range a.ExtractedData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "extracted:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, a.ExtractedData[k])
		}
	}
}

func (a *app) reviewCmd() *cobra.Command {
	var status, notes string

	cmd := &cobra.Command{
		Use:   "review DOC_ID",
		Short: "Record an HR decision for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.VerificationStatus(status).Reviewable() {
				return fmt.Errorf("--status must be verified or rejected, got %q", status)
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.ReviewDocument(cmd.Context(), args[0], status, notes)
			if err != nil {
				return a.checkAuth(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (by %s)\n", d.DocumentID, d.VerificationStatus, d.VerifiedBy)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "verified or rejected")
	cmd.Flags().StringVar(&notes, "notes", "", "Review notes shown to the employee")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func (a *app) downloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download DOC_ID",
		Short: "Download the stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			path := output
			if path == "" {
				d, err := c.GetDocument(ctx, args[0])
				if err != nil {
					return a.checkAuth(err)
				}
				path = filepath.Base(d.OriginalFilename)
				if path == "." || path == string(filepath.Separator) || path == "" {
					path = args[0]
				}
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			n, err := c.DownloadDocument(ctx, args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(path)
				return a.checkAuth(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: the original filename)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete DOC_ID",
		Short: "Delete a document and its stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete document %s? [y/N] ", args[0])
				line, err := readLine(cmd.InOrStdin())
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if !strings.EqualFold(line, "y") && !strings.EqualFold(line, "yes") {
					return workflow.ErrNotConfirmed
				}
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return a.checkAuth(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return line, err
	}
	return line, nil
}

func percent(score float64) string {
	return fmt.Sprintf("%d%%", int(score*100+0.5))
}
