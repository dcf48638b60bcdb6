package types

// Version is the canonical project version.
// The CLI, the report frame contract and the notification payload share
// this version.
const Version = "0.3.0"

// ContractVersion is the version stamped on every report frame and
// step_completed notification. Kept in lockstep with Version.
const ContractVersion = Version
