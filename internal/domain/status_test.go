package domain

import "testing"

func TestCampaignTransitions(t *testing.T) {
	cases := []struct {
		from, to CampaignStatus
		ok       bool
	}{
		{CampaignDraft, CampaignSending, true},
		{CampaignDraft, CampaignScheduled, true},
		{CampaignDraft, CampaignCancelled, true},
		{CampaignScheduled, CampaignSending, true},
		{CampaignSending, CampaignSent, true},
		{CampaignSending, CampaignSending, true},
		{CampaignDraft, CampaignSent, false},
		{CampaignSent, CampaignSending, false},
		{CampaignCancelled, CampaignSending, false},
		{CampaignSent, CampaignDraft, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestJobTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobPending, JobSending, true},
		{JobPending, JobSuppressed, true},
		{JobPending, JobScheduled, true},
		{JobScheduled, JobPending, true},
		{JobSending, JobSent, true},
		{JobSending, JobFailed, true},
		{JobPending, JobSent, false},
		{JobSent, JobPending, false},
		{JobSuppressed, JobSending, false},
		{JobFailed, JobSending, false},
		{JobScheduled, JobSending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []JobStatus{JobSent, JobFailed, JobSuppressed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobPending, JobScheduled, JobSending} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
