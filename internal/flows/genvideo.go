package flows

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/FuncStore/FuncBot/internal/flow"
	"github.com/FuncStore/FuncBot/internal/models"
	"github.com/FuncStore/FuncBot/internal/render"
	"github.com/FuncStore/FuncBot/internal/task"
)

const (
	genVideoImagePrompt  = "Send the path to the source image file."
	genVideoMotionPrompt = "Describe the motion you want, or send `auto` to describe the image automatically."
)

func (r *Registry) registerGenVideo(d *flow.Dispatcher) {
	d.Handle(models.FlowGenVideo, models.StateIdle, "/genvideo", r.startGenVideo)
	d.Handle(models.FlowGenVideo, models.StateGenVideoImage, "", r.storeVideoImage)
	d.Handle(models.FlowGenVideo, models.StateGenVideoPrompt, "", r.runVideoTask)

	// The progress state accepts the cancel token and flips the cancel flag
	// instead of clearing state; the cancelling sub-state suppresses all
	// input until the worker acknowledges termination.
	d.SetLongTaskState(models.StateGenVideoProgress, models.StateGenVideoCancelling)
}

func (r *Registry) startGenVideo(ctx context.Context, conversationID, _ string) error {
	if err := r.Dispatcher.EnterFlow(ctx, conversationID, models.FlowGenVideo, models.StateGenVideoImage); err != nil {
		return err
	}
	r.send(ctx, conversationID, genVideoImagePrompt)
	return nil
}

func (r *Registry) storeVideoImage(ctx context.Context, conversationID, input string) error {
	path := strings.TrimSpace(input)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		r.Dispatcher.Reprompt(ctx, conversationID, "No image file at that path.", genVideoImagePrompt)
		return nil
	}
	if err := r.States.MergeData(ctx, conversationID, map[models.DataKey]string{models.DataKeyImagePath: path}); err != nil {
		return err
	}
	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowGenVideo, models.StateGenVideoPrompt); err != nil {
		return err
	}
	r.send(ctx, conversationID, genVideoMotionPrompt)
	return nil
}

// runVideoTask hands the browser operation to the coordinator and returns.
// Awaiting and delivery run on their own goroutine so the dispatcher's
// conversation lock is released while the task runs and cancel events keep
// reaching the long-task guard.
func (r *Registry) runVideoTask(ctx context.Context, conversationID, input string) error {
	prompt := strings.TrimSpace(input)
	autoDescribe := prompt == "auto"
	if autoDescribe {
		prompt = ""
	}
	if prompt == "" && !autoDescribe {
		r.Dispatcher.Reprompt(ctx, conversationID, "Prompt cannot be empty.", genVideoMotionPrompt)
		return nil
	}

	imagePath, err := r.States.GetData(ctx, conversationID, models.DataKeyImagePath)
	if err != nil {
		return err
	}

	dir, err := r.workDir(conversationID)
	if err != nil {
		return err
	}

	if err := r.States.SetCurrentState(ctx, conversationID, models.FlowGenVideo, models.StateGenVideoProgress); err != nil {
		cleanupDir(dir)
		return err
	}

	msgID, err := r.Render.SendMessage(ctx, conversationID, render.Progress(0))
	if err != nil {
		cleanupDir(dir)
		return err
	}
	if err := r.States.MergeData(ctx, conversationID, map[models.DataKey]string{models.DataKeyProgressMsgID: msgID}); err != nil {
		cleanupDir(dir)
		return err
	}

	op := r.Video.Operation(imagePath, prompt, dir, autoDescribe)
	handle := r.Coordinator.Start(ctx, conversationID, op)
	go r.deliverVideo(ctx, conversationID, msgID, dir, handle)
	return nil
}

func (r *Registry) deliverVideo(ctx context.Context, conversationID, msgID, dir string, handle *task.Handle) {
	defer cleanupDir(dir)

	outcome := r.Coordinator.Await(ctx, conversationID, msgID, handle, render.Progress)

	switch outcome.Status {
	case models.TaskCompleted:
		if err := r.Render.SendDocument(ctx, conversationID, outcome.Result, "Here is your video."); err != nil {
			r.send(ctx, conversationID, "Could not deliver the video, please try again.")
		}
	case models.TaskCancelled:
		r.send(ctx, conversationID, r.Dispatcher.CancelledMessage)
	default:
		r.send(ctx, conversationID, outcome.Err)
	}
	if err := r.finish(ctx, conversationID); err != nil {
		slog.Error("GenVideo flow failed to reset state after the task", "error", err, "conversationID", conversationID)
	}
}
