package farm

import "time"

// AccountStatus is a point-in-time view of one account.
type AccountStatus struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	State     string    `json:"state"`
	Sent      int64     `json:"offers_sent"`
	Accepted  int64     `json:"offers_accepted"`
	Declined  int64     `json:"offers_declined"`
	Failed    int64     `json:"handler_failures"`
	LastError string    `json:"last_error,omitempty"`
	LastEvent time.Time `json:"last_event,omitempty"`
}

// Status summarises the cycle. The security code itself is never exposed.
type Status struct {
	AppID           int             `json:"app_id"`
	SecurityCodeSet bool            `json:"security_code_set"`
	Accounts        []AccountStatus `json:"accounts"`
}

// Status is safe to call while Run is active.
func (o *Orchestrator) Status() Status {
	st := Status{
		AppID:           o.cfg.AppID,
		SecurityCodeSet: !o.code.IsZero(),
		Accounts:        make([]AccountStatus, 0, len(o.accounts)),
	}
	for _, a := range o.accounts {
		a.mu.RLock()
		as := AccountStatus{
			Username:  a.self.Username(),
			Role:      a.role.String(),
			State:     a.state.String(),
			LastError: a.lastError,
			LastEvent: a.lastEvent,
		}
		a.mu.RUnlock()

		as.Sent = a.sent.Load()
		as.Accepted = a.accepted.Load()
		as.Declined = a.declined.Load()
		as.Failed = a.failed.Load()
		st.Accounts = append(st.Accounts, as)
	}
	return st
}
