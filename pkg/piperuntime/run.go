package piperuntime

import (
	"context"
	"errors"
)

// Run executes plan to completion and returns the Ok/Err envelope (spec
// §4.5). It never panics on a malformed plan or misbehaving capability; any
// failure becomes an Err envelope with one of the reserved codes, and the
// returned error is nil whenever an envelope (Ok or Err) was produced. A
// non-nil error return means ctx was canceled before a result could be
// assembled at all.
func Run(ctx context.Context, host Host, plan Plan) (Envelope, error) {
	if err := validateCfg(plan.Cfg); err != nil {
		return envelopeOf(err), nil
	}

	src, err := newSourceDriver(host, plan.Cfg, plan.Src)
	if err != nil {
		return envelopeOf(err), nil
	}
	defer src.close()

	stages := make([]*stage, len(plan.Chain))
	for i, xf := range plan.Chain {
		if xf.Kind == XfJSONCanonStream && host.JSON == nil {
			return envelopeOf(newError(CodeCfgInvalid, "stream:json_capability_missing")), nil
		}
		stages[i] = newStage(xf, host.JSON)
	}

	sink, err := newSinkWriter(host, plan.Sink)
	if err != nil {
		return envelopeOf(err), nil
	}

	st := Stats{}
	maxSteps := plan.Cfg.effectiveMaxSteps()
	steps := 0
	stopped := false

	for !stopped {
		if ctx.Err() != nil {
			return Envelope{}, ctx.Err()
		}
		steps++
		if steps > maxSteps {
			return envelopeOf(newError(CodeCfgInvalid, "stream:max_steps_exceeded")), nil
		}

		chunk, eof, err := src.next(ctx)
		if err != nil {
			return envelopeOf(err), nil
		}
		if len(chunk) > 0 {
			st.ItemsIn++
			st.BytesIn += uint32(len(chunk))
			if plan.Cfg.MaxInBytes > 0 && int(st.BytesIn) > plan.Cfg.MaxInBytes {
				return envelopeOf(newError(CodeBudgetIn, "stream:budget_in_exceeded")), nil
			}
		}

		pending := [][]byte{chunk}
		for _, s := range stages {
			if eof && len(pending) == 0 {
				pending = [][]byte{nil}
			}
			var next [][]byte
			for i, in := range pending {
				outs, stop, err := s.step(in, eof && i == len(pending)-1)
				if err != nil {
					return envelopeOf(err), nil
				}
				next = append(next, outs...)
				if stop {
					stopped = true
				}
			}
			pending = next
			if stopped {
				break
			}
		}

		for _, item := range pending {
			itemBytes := len(item)
			if plan.Sink.U32Frames {
				itemBytes += 4
			}
			st.ItemsOut++
			if plan.Cfg.MaxItems > 0 && int(st.ItemsOut) > plan.Cfg.MaxItems {
				return envelopeOf(newError(CodeBudgetItems, "stream:budget_items_exceeded")), nil
			}
			st.BytesOut += uint32(itemBytes)
			if plan.Cfg.MaxOutBytes > 0 && int(st.BytesOut) > plan.Cfg.MaxOutBytes {
				return envelopeOf(newError(CodeBudgetOut, "stream:budget_out_exceeded")), nil
			}
			if err := sink.write(ctx, item); err != nil {
				return envelopeOf(err), nil
			}
		}

		if eof || stopped {
			break
		}
	}

	payload, err := sink.finish(ctx)
	if err != nil {
		return envelopeOf(err), nil
	}
	return okResult(plan.Cfg, st, payload)
}

func validateCfg(cfg Cfg) error {
	if cfg.ChunkMaxBytes <= 0 {
		return newError(CodeCfgInvalid, "stream:chunk_max_bytes_invalid")
	}
	if cfg.BufreadCapBytes < cfg.ChunkMaxBytes {
		return newError(CodeCfgInvalid, "stream:bufread_cap_bytes_too_small")
	}
	if cfg.MaxInBytes <= 0 {
		return newError(CodeCfgInvalid, "stream:max_in_bytes_invalid")
	}
	if cfg.MaxOutBytes <= 0 {
		return newError(CodeCfgInvalid, "stream:max_out_bytes_invalid")
	}
	if cfg.MaxItems <= 0 {
		return newError(CodeCfgInvalid, "stream:max_items_invalid")
	}
	return nil
}

// envelopeOf converts any error produced inside Run into an Err envelope.
// Errors raised internally are always *Error; a plain error from a
// misbehaving capability is reported as stage_failed.
func envelopeOf(err error) Envelope {
	var pe *Error
	if errors.As(err, &pe) {
		return Envelope{Code: pe.Code, Message: pe.Msg, ErrPayload: pe.Payload}
	}
	return Envelope{Code: CodeStageFailed, Message: "stream:stage_failed: " + err.Error()}
}
