package processors

import (
	"context"
	"encoding/json"
	"sort"

	"taas-es-processor/internal/aggregate"
	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/events"
)

const fieldInterviews = "interviews"

func (s *Set) interviewsOf(candidateID string) aggregate.Ref {
	return aggregate.Ref{Index: s.cfg.Indices.JobCandidate, DocID: candidateID, Field: fieldInterviews}
}

// interviewRequest upserts the interview into its candidate. A candidate
// that is not indexed yet sends the message to the retry queue.
func (s *Set) interviewRequest(ctx context.Context, req events.Request) error {
	interview, err := s.payload(events.InterviewRequest, req)
	if err != nil {
		return err
	}
	err = s.maintainer.Append(ctx, req.Store, s.interviewsOf(str(interview, "jobCandidateId")), interview)
	return s.deferMissingParent(ctx, req, err)
}

func (s *Set) interviewUpdate(ctx context.Context, req events.Request) error {
	interview, err := s.payload(events.InterviewUpdate, req)
	if err != nil {
		return err
	}
	return s.maintainer.Merge(ctx, req.Store, s.interviewsOf(str(interview, "jobCandidateId")), str(interview, "id"), interview)
}

// interviewBulkUpdate merges field maps keyed by candidate id then
// interview id, in one update-by-query.
func (s *Set) interviewBulkUpdate(ctx context.Context, req events.Request) error {
	if _, err := s.payload(events.InterviewBulkUpdate, req); err != nil {
		return err
	}

	var changes map[string]map[string]map[string]interface{}
	if err := json.Unmarshal(req.Message.Payload, &changes); err != nil {
		return apperrors.NewDecodeError(err)
	}
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.logger.Debug("bulk updating interviews", map[string]interface{}{
		"transactionId": req.Token,
		"jobCandidates": len(ids),
	})
	return req.Store.UpdateByQuery(ctx, s.cfg.Indices.JobCandidate, ids, aggregate.BulkMergeScript(fieldInterviews, changes))
}
