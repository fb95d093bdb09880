package session

// User-visible outcome messages.
const (
	MsgNotReady         = "Not ready: connect a wallet on Arbitrum One first"
	MsgSubmitting       = "Submitting approval..."
	MsgApproved         = "Builder Fee Approved Successfully! Welcome to the $TRUST fam 🦍"
	MsgTxRejected       = "Transaction rejected by user"
	MsgApprovalFailed   = "Approval Failed: "
	MsgAddNetworkFailed = "Failed to add network"
	MsgSwitchRejected   = "Network switch rejected by user"
	MsgSwitchFailed     = "Failed to switch network: "
	MsgConfirmed        = "Approval confirmed in block %s"
	MsgReverted         = "Approval transaction reverted"
	MsgConfirmTimeout   = "Approval submitted; confirmation still pending"
	MsgDisconnected     = "Wallet disconnected"
)
