package model

import "time"

// Sponsor is a logo shown on newly rendered passes.  Name acts as the key
// for removal; Logo is a file name inside the sponsors directory.
type Sponsor struct {
	Name    string    `json:"name"`
	Logo    string    `json:"logo"`
	AddedAt time.Time `json:"added_at"`
}

// PoweredBy is the single attribution shown in the top-right corner of every
// pass.  Updates replace it wholesale.
type PoweredBy struct {
	Name      string     `json:"name"`
	Logo      string     `json:"logo"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
