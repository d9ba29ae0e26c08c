package types

// UnstakeState is the withdrawal lifecycle state of a staker.
type UnstakeState string

const (
	StateActive           UnstakeState = "ACTIVE"
	StateWithdrawalLocked UnstakeState = "WITHDRAWAL_LOCKED"
)

func (s UnstakeState) String() string {
	return string(s)
}
