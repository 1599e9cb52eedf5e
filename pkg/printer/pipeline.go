package printer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/db"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/Zahlii/photobooth/pkg/storage"
	"github.com/google/uuid"
	"github.com/superfly/fsm"
)

// Archiver keeps a copy of printed images.
type Archiver interface {
	Upload(ctx context.Context, localPath, name string) (*storage.UploadResult, error)
}

// Pipeline runs print jobs as durable workflows: validate, prepare the print file,
// submit it to the spooler, archive the original and clean up.
type Pipeline struct {
	repo           *db.Repository
	spooler        Spooler
	images         *security.Validator
	archive        Archiver
	workDir        string
	border         int
	defaultPrinter string
	maxRetries     int

	manager *fsm.Manager
	start   fsm.Start[JobRequest, JobResponse]
}

// Config holds the pipeline settings.
type Config struct {
	WorkDir        string
	Border         int
	DefaultPrinter string
	MaxRetries     int
}

// NewPipeline creates a pipeline. archive may be nil.
func NewPipeline(repo *db.Repository, spooler Spooler, images *security.Validator, archive Archiver, cfg Config) *Pipeline {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Pipeline{
		repo:           repo,
		spooler:        spooler,
		images:         images,
		archive:        archive,
		workDir:        cfg.WorkDir,
		border:         cfg.Border,
		defaultPrinter: cfg.DefaultPrinter,
		maxRetries:     cfg.MaxRetries,
	}
}

// Register registers the print job FSM
func (p *Pipeline) Register(ctx context.Context, manager *fsm.Manager) error {
	start, _, err := fsm.Register[JobRequest, JobResponse](manager, "print-job").
		Start(StateValidate, p.handleValidate).
		To(StatePrepare, p.handlePrepare).
		To(StateSubmit, p.handleSubmit).
		To(StateArchive, p.handleArchive).
		To(StateComplete, p.handleComplete).
		End(StateFailed).
		Build(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to register FSM")
	}
	p.manager = manager
	p.start = start
	return nil
}

// Print records a job for req, runs it to completion and returns the final record.
func (p *Pipeline) Print(ctx context.Context, req booth.PrintRequest) (*db.PrintJob, error) {
	if p.start == nil {
		return nil, fmt.Errorf("print pipeline not registered")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &db.PrintJob{
		ID:        uuid.NewString(),
		ImagePath: req.ImagePath,
		Copies:    req.Copies,
		Landscape: req.Landscape,
		Printer:   req.PrinterName,
		CmdArgs:   req.CmdArgs,
		Status:    db.StatusPending,
	}
	if err := p.repo.CreateJob(job); err != nil {
		return nil, err
	}

	version, err := p.start(ctx, job.ID, fsm.NewRequest(&JobRequest{JobID: job.ID}, &JobResponse{}))
	if err != nil {
		p.repo.UpdateJobStatus(job.ID, db.StatusFailed, err.Error())
		return nil, errors.Wrap(err, "FSM start failed")
	}
	slog.Info("print_job_started", "job_id", job.ID, "version", version)

	waitErr := p.manager.Wait(ctx, version)

	final, err := p.repo.GetJob(job.ID)
	if err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("print job %s vanished", job.ID)
	}
	if final.Status != db.StatusComplete {
		if final.ErrorMessage != "" {
			return final, fmt.Errorf("print job %s failed: %s", job.ID, final.ErrorMessage)
		}
		if waitErr != nil {
			return final, errors.Wrap(waitErr, "print job failed")
		}
		return final, fmt.Errorf("print job %s ended in status %s", job.ID, final.Status)
	}
	return final, nil
}

// load fetches the job and enforces the retry budget
func (p *Pipeline) load(ctx context.Context, state string, req *fsm.Request[JobRequest, JobResponse]) (*db.PrintJob, *JobResponse, error) {
	slog.Info("fsm_state_"+state, "job_id", req.Msg.JobID)

	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(p.maxRetries) {
		slog.Error("max_retries_exceeded", "job_id", req.Msg.JobID, "state", state, "max_retries", p.maxRetries)
		err := fmt.Errorf("max retries (%d) exceeded in %s", p.maxRetries, state)
		p.repo.UpdateJobStatus(req.Msg.JobID, db.StatusFailed, err.Error())
		return nil, nil, fsm.Abort(err)
	}

	job, err := p.repo.GetJob(req.Msg.JobID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "database error")
	}
	if job == nil {
		return nil, nil, fsm.Abort(fmt.Errorf("print job %s not found", req.Msg.JobID))
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &JobResponse{}
	}
	return job, resp, nil
}

// fail marks the job failed and stops the workflow
func (p *Pipeline) fail(job *db.PrintJob, resp *JobResponse, err error) error {
	slog.Error("print_job_failed", "job_id", job.ID, "image_path", job.ImagePath, "error", err)
	resp.Status = db.StatusFailed
	resp.ErrorMessage = err.Error()
	p.repo.UpdateJobStatus(job.ID, db.StatusFailed, err.Error())
	if job.PrintFile != "" && job.PrintFile != p.fullPath(job.ImagePath) {
		os.Remove(job.PrintFile)
	}
	return fsm.Abort(err)
}

func (p *Pipeline) fullPath(name string) string {
	return filepath.Join(p.images.Root(), filepath.FromSlash(name))
}

// handleValidate checks the image belongs to the image folder
func (p *Pipeline) handleValidate(ctx context.Context, req *fsm.Request[JobRequest, JobResponse]) (*fsm.Response[JobResponse], error) {
	job, resp, err := p.load(ctx, StateValidate, req)
	if err != nil {
		return nil, err
	}

	if _, err := p.images.ValidateFile(job.ImagePath); err != nil {
		return nil, p.fail(job, resp, err)
	}
	if job.Copies < 1 {
		return nil, p.fail(job, resp, fmt.Errorf("copies must be at least 1, got %d", job.Copies))
	}

	resp.ImagePath = job.ImagePath
	if err := p.repo.UpdateJobStatus(job.ID, db.StatusPreparing, ""); err != nil {
		return nil, err
	}
	return fsm.NewResponse(resp), nil
}

// handlePrepare renders the bordered print file
func (p *Pipeline) handlePrepare(ctx context.Context, req *fsm.Request[JobRequest, JobResponse]) (*fsm.Response[JobResponse], error) {
	job, resp, err := p.load(ctx, StatePrepare, req)
	if err != nil {
		return nil, err
	}

	printFile := p.fullPath(job.ImagePath)
	if p.border > 0 {
		if err := os.MkdirAll(p.workDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create work dir")
		}
		printFile, err = AddBorder(printFile, p.workDir, p.border)
		if err != nil {
			return nil, p.fail(job, resp, err)
		}
		slog.Info("print_border_added", "job_id", job.ID, "border", p.border, "file", printFile)
	}

	job.PrintFile = printFile
	if err := p.repo.UpdateJob(job); err != nil {
		return nil, err
	}
	resp.PrintFile = printFile
	return fsm.NewResponse(resp), nil
}

// handleSubmit hands the print file to the spooler
func (p *Pipeline) handleSubmit(ctx context.Context, req *fsm.Request[JobRequest, JobResponse]) (*fsm.Response[JobResponse], error) {
	job, resp, err := p.load(ctx, StateSubmit, req)
	if err != nil {
		return nil, err
	}

	printer := job.Printer
	if printer == "" {
		printer = p.defaultPrinter
	}
	if printer == "" {
		printer, err = p.spooler.DefaultPrinter(ctx)
		if err != nil {
			if errors.Is(err, command.ErrNotInstalled) {
				return nil, p.fail(job, resp, err)
			}
			return nil, err
		}
	}

	opts := Options{Printer: printer, Copies: job.Copies, Landscape: job.Landscape, Extra: job.CmdArgs}
	if err := p.spooler.Print(ctx, job.PrintFile, opts); err != nil {
		if errors.Is(err, command.ErrNotInstalled) || ctx.Err() != nil {
			return nil, p.fail(job, resp, err)
		}
		slog.Warn("print_submit_retry", "job_id", job.ID, "error", err)
		return nil, err
	}

	job.Printer = printer
	job.Status = db.StatusSubmitted
	if err := p.repo.UpdateJob(job); err != nil {
		return nil, err
	}
	if err := p.repo.MarkPrinted(job.ImagePath); err != nil {
		slog.Warn("mark_printed_failed", "image_path", job.ImagePath, "error", err)
	}

	resp.Printer = printer
	return fsm.NewResponse(resp), nil
}

// handleArchive uploads the original image. Archive problems never fail a print.
func (p *Pipeline) handleArchive(ctx context.Context, req *fsm.Request[JobRequest, JobResponse]) (*fsm.Response[JobResponse], error) {
	job, resp, err := p.load(ctx, StateArchive, req)
	if err != nil {
		return nil, err
	}

	if p.archive == nil {
		slog.Info("archive_skipped", "job_id", job.ID, "reason", "not_configured")
		return fsm.NewResponse(resp), nil
	}

	name := job.ID + "_" + strings.ReplaceAll(job.ImagePath, "/", "_")
	result, err := p.archive.Upload(ctx, p.fullPath(job.ImagePath), name)
	if err != nil {
		slog.Warn("archive_failed", "job_id", job.ID, "error", err)
		resp.ErrorMessage = fmt.Sprintf("archive warning: %v", err)
		return fsm.NewResponse(resp), nil
	}

	job.ArchiveKey = result.Key
	job.Status = db.StatusArchived
	if err := p.repo.UpdateJob(job); err != nil {
		return nil, err
	}
	resp.ArchiveKey = result.Key
	return fsm.NewResponse(resp), nil
}

// handleComplete removes the temporary print file and marks the job complete
func (p *Pipeline) handleComplete(ctx context.Context, req *fsm.Request[JobRequest, JobResponse]) (*fsm.Response[JobResponse], error) {
	job, resp, err := p.load(ctx, StateComplete, req)
	if err != nil {
		return nil, err
	}

	if job.PrintFile != "" && job.PrintFile != p.fullPath(job.ImagePath) {
		if err := os.Remove(job.PrintFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("print_file_cleanup_failed", "path", job.PrintFile, "error", err)
		}
	}

	if err := p.repo.UpdateJobStatus(job.ID, db.StatusComplete, ""); err != nil {
		return nil, err
	}
	resp.Status = db.StatusComplete

	slog.Info("fsm_complete", "job_id", job.ID, "printer", job.Printer, "archive_key", job.ArchiveKey)
	return fsm.NewResponse(resp), nil
}
