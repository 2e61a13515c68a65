package chain

import (
	"context"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ledgerwire/core/errs"
)

const tokenDecimals = 6

// solanaClient is the production Client, backed by an SPL-token-compatible
// RPC endpoint. TokenMints maps the two supported symbols to their mint
// addresses; both USDC and USDT have 6 decimals.
type solanaClient struct {
	rpcClient  *rpc.Client
	tokenMints map[string]solana.PublicKey
	commitment rpc.CommitmentType
}

// NewSolanaClient builds a Client against endpoint, with mint addresses for
// the two supported SPL tokens.
func NewSolanaClient(endpoint, usdcMint, usdtMint string) (Client, error) {
	usdc, err := solana.PublicKeyFromBase58(usdcMint)
	if err != nil {
		return nil, errs.Internal("invalid USDC mint address", err)
	}
	usdt, err := solana.PublicKeyFromBase58(usdtMint)
	if err != nil {
		return nil, errs.Internal("invalid USDT mint address", err)
	}

	return &solanaClient{
		rpcClient: rpc.New(endpoint),
		tokenMints: map[string]solana.PublicKey{
			"USDC": usdc,
			"USDT": usdt,
		},
		commitment: rpc.CommitmentConfirmed,
	}, nil
}

func (c *solanaClient) GenerateKeypair() (string, []byte, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", nil, errs.Internal("failed to generate keypair", err)
	}
	return priv.PublicKey().String(), []byte(priv), nil
}

// validateRecipient enforces base58 syntax and a 32-44 char length band
// before any RPC call is attempted.
func validateRecipient(pub string) (solana.PublicKey, error) {
	if len(pub) < 32 || len(pub) > 44 {
		return solana.PublicKey{}, errs.Validation("recipient address has invalid length")
	}
	key, err := solana.PublicKeyFromBase58(pub)
	if err != nil {
		return solana.PublicKey{}, errs.Validation("recipient address is not valid base58")
	}
	return key, nil
}

func (c *solanaClient) mint(token string) (solana.PublicKey, error) {
	mint, ok := c.tokenMints[token]
	if !ok {
		return solana.PublicKey{}, errs.Validation("unsupported token: " + token)
	}
	return mint, nil
}

// TransferToken validates, derives ATAs, checks the sender's raw balance,
// builds an optional create-ATA instruction plus the transfer instruction,
// and submits with preflight at "confirmed". Submission retries per
// retry.go's classification.
func (c *solanaClient) TransferToken(ctx context.Context, secret []byte, recipientPub string, amount float64, tok string) (string, error) {
	if amount <= 0 {
		return "", errs.Validation("amount must be greater than zero")
	}
	mint, err := c.mint(tok)
	if err != nil {
		return "", err
	}
	recipient, err := validateRecipient(recipientPub)
	if err != nil {
		return "", err
	}

	sender := solana.PrivateKey(secret)
	senderATA, _, err := solana.FindAssociatedTokenAddress(sender.PublicKey(), mint)
	if err != nil {
		return "", errs.ChainTerminal("failed to derive sender ATA", err)
	}
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return "", errs.ChainTerminal("failed to derive recipient ATA", err)
	}

	rawBalance, err := c.rawTokenBalance(ctx, senderATA)
	if err != nil {
		return "", err
	}
	rawAmount := uint64(math.Round(amount * math.Pow10(tokenDecimals)))
	if rawBalance < rawAmount {
		return "", errs.InsufficientBalance(amount, float64(rawBalance)/math.Pow10(tokenDecimals))
	}

	recipientExists := c.accountExists(ctx, recipientATA)

	return withRetry(ctx, func() (string, error) {
		return c.submitTransfer(ctx, sender, senderATA, recipientATA, recipient, mint, rawAmount, recipientExists)
	})
}

func (c *solanaClient) submitTransfer(
	ctx context.Context,
	sender solana.PrivateKey,
	senderATA, recipientATA, recipientOwner, mint solana.PublicKey,
	rawAmount uint64,
	recipientExists bool,
) (string, error) {
	blockhash, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return "", errs.ChainTransient("failed to fetch blockhash", err)
	}

	var instructions []solana.Instruction
	if !recipientExists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			sender.PublicKey(), recipientOwner, mint,
		).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(
		rawAmount, senderATA, recipientATA, sender.PublicKey(), nil,
	).Build())

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(sender.PublicKey()))
	if err != nil {
		return "", errs.ChainTerminal("failed to build transaction", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(sender.PublicKey()) {
			return &sender
		}
		return nil
	}); err != nil {
		return "", errs.ChainTerminal("failed to sign transaction", err)
	}

	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", classifySubmitError(err)
	}
	return sig.String(), nil
}

// classifySubmitError preserves the RPC error message so retry.go's
// substring classification can tell transient from terminal failures.
func classifySubmitError(err error) error {
	if isRetryable(err) {
		return errs.ChainTransient(err.Error(), err)
	}
	return errs.ChainTerminal(err.Error(), err)
}

func (c *solanaClient) rawTokenBalance(ctx context.Context, ata solana.PublicKey) (uint64, error) {
	resp, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, c.commitment)
	if err != nil {
		return 0, nil // ATA missing: treat as zero balance
	}
	amount, err := parseUint64(resp.Value.Amount)
	if err != nil {
		return 0, errs.ChainTerminal("malformed token account balance", err)
	}
	return amount, nil
}

func (c *solanaClient) accountExists(ctx context.Context, pub solana.PublicKey) bool {
	info, err := c.rpcClient.GetAccountInfo(ctx, pub)
	return err == nil && info != nil && info.Value != nil
}

func (c *solanaClient) GetTokenBalance(ctx context.Context, pub, tok string) (float64, error) {
	mint, err := c.mint(tok)
	if err != nil {
		return 0, err
	}
	owner, err := solana.PublicKeyFromBase58(pub)
	if err != nil {
		return 0, errs.Validation("invalid public key")
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, nil
	}
	raw, err := c.rawTokenBalance(ctx, ata)
	if err != nil {
		return 0, nil // zero on any lookup failure
	}
	return float64(raw) / math.Pow10(tokenDecimals), nil
}

func (c *solanaClient) GetSolBalance(ctx context.Context, pub string) (float64, error) {
	owner, err := solana.PublicKeyFromBase58(pub)
	if err != nil {
		return 0, errs.Validation("invalid public key")
	}
	resp, err := c.rpcClient.GetBalance(ctx, owner, c.commitment)
	if err != nil {
		return 0, nil
	}
	return float64(resp.Value) / math.Pow10(9), nil
}

func (c *solanaClient) EnsureATA(ctx context.Context, walletPub, tok string, payerSecret []byte) error {
	mint, err := c.mint(tok)
	if err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(walletPub)
	if err != nil {
		return errs.Validation("invalid public key")
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return errs.ChainTerminal("failed to derive ata", err)
	}
	if c.accountExists(ctx, ata) {
		return nil
	}
	if payerSecret == nil {
		return errs.Validation("ata missing and no payer supplied")
	}
	payer := solana.PrivateKey(payerSecret)

	_, err = withRetry(ctx, func() (string, error) {
		blockhash, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return "", errs.ChainTransient("failed to fetch blockhash", err)
		}
		ix := associatedtokenaccount.NewCreateInstruction(payer.PublicKey(), owner, mint).Build()
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash.Value.Blockhash, solana.TransactionPayer(payer.PublicKey()))
		if err != nil {
			return "", errs.ChainTerminal("failed to build ata transaction", err)
		}
		if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(payer.PublicKey()) {
				return &payer
			}
			return nil
		}); err != nil {
			return "", errs.ChainTerminal("failed to sign ata transaction", err)
		}
		sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: c.commitment})
		if err != nil {
			return "", classifySubmitError(err)
		}
		return sig.String(), nil
	})
	return err
}

func (c *solanaClient) IsConfirmed(ctx context.Context, signature string) (bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, errs.Validation("invalid signature")
	}
	statuses, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil || statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return false, nil
	}
	status := statuses.Value[0]
	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

func (c *solanaClient) GetTxDetails(ctx context.Context, signature string) (*TxDetails, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, errs.Validation("invalid signature")
	}
	version := uint64(0)
	tx, err := c.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil || tx == nil {
		return nil, nil
	}
	details := &TxDetails{Slot: tx.Slot}
	if tx.BlockTime != nil {
		details.BlockTime = tx.BlockTime.Time()
	}
	if tx.Meta != nil {
		details.Fee = tx.Meta.Fee
		details.IsSuccess = tx.Meta.Err == nil
	}
	return details, nil
}

// EstimateTransferFee builds the same instruction list transfer_token would
// and asks the network for its fee; falls back to a flat estimate when the
// simulation cannot be performed.
func (c *solanaClient) EstimateTransferFee(ctx context.Context, senderPub, recipientPub, tok string) (uint64, error) {
	mint, err := c.mint(tok)
	if err != nil {
		return 0, err
	}
	sender, err := solana.PublicKeyFromBase58(senderPub)
	if err != nil {
		return 0, errs.Validation("invalid sender public key")
	}
	recipient, err := validateRecipient(recipientPub)
	if err != nil {
		return 0, err
	}

	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return fallbackFeeLamports, nil
	}
	recipientExists := c.accountExists(ctx, recipientATA)

	blockhash, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		if recipientExists {
			return fallbackFeeLamports, nil
		}
		return fallbackFeeWithATALamports, nil
	}

	senderATA, _, _ := solana.FindAssociatedTokenAddress(sender, mint)
	var instructions []solana.Instruction
	if !recipientExists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(sender, recipient, mint).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(0, senderATA, recipientATA, sender, nil).Build())

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(sender))
	if err != nil {
		if recipientExists {
			return fallbackFeeLamports, nil
		}
		return fallbackFeeWithATALamports, nil
	}

	feeResp, err := c.rpcClient.GetFeeForMessage(ctx, tx.Message.ToBase64(), c.commitment)
	if err != nil || feeResp == nil || feeResp.Value == nil {
		if recipientExists {
			return fallbackFeeLamports, nil
		}
		return fallbackFeeWithATALamports, nil
	}
	return *feeResp.Value, nil
}

func (c *solanaClient) WaitForConfirmation(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		confirmed, err := c.IsConfirmed(ctx, signature)
		if err != nil {
			return false, err
		}
		if confirmed {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func parseUint64(s string) (uint64, error) {
	var n uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errs.New(errs.KindInternal, "not a digit string")
		}
		n = n*10 + uint64(r-'0')
	}
	return n, nil
}
