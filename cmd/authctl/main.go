package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	internalaws "github.com/FilOzone/warm-storage-auth-go/internal/aws"
	"github.com/FilOzone/warm-storage-auth-go/pkg/authSigner"
	"github.com/FilOzone/warm-storage-auth-go/pkg/config"
	"github.com/FilOzone/warm-storage-auth-go/pkg/extraData"
	"github.com/FilOzone/warm-storage-auth-go/pkg/logger"
	"github.com/FilOzone/warm-storage-auth-go/pkg/operations"
)

func main() {
	app := &cli.App{
		Name:  "authctl",
		Usage: "Sign warm storage authorization operations",
		Description: `Produces the EIP-712 signature and extraData payload a warm storage
service contract expects for data set operations, using a local private key.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "private-key",
				Aliases: []string{"k"},
				Usage:   "Client private key (hex)",
				EnvVars: []string{config.EnvAuthPrivateKey},
			},
			&cli.StringFlag{
				Name:    "kms-key-id",
				Usage:   "AWS KMS key id or ARN to sign with instead of a local private key",
				EnvVars: []string{config.EnvAuthKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the KMS key",
				EnvVars: []string{config.EnvAuthAWSRegion},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Usage:   fmt.Sprintf("Chain ID: %s", config.GetSupportedChainIDsString()),
				Value:   uint64(config.ChainId_Anvil),
				EnvVars: []string{config.EnvAuthChainID},
			},
			&cli.StringFlag{
				Name:    "service-contract",
				Usage:   "Warm storage service contract address (defaults to the chain's known deployment)",
				EnvVars: []string{config.EnvAuthServiceContract},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvAuthVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create-data-set",
				Usage: "Sign a CreateDataSet authorization",
				Flags: []cli.Flag{
					clientDataSetIdFlag(),
					&cli.StringFlag{
						Name:     "payee",
						Usage:    "Storage provider payment address",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "metadata",
						Usage: "Data set metadata entry as key=value (repeatable, order preserved)",
					},
				},
				Action: runCreateDataSet,
			},
			{
				Name:  "add-pieces",
				Usage: "Sign an AddPieces authorization",
				Flags: []cli.Flag{
					clientDataSetIdFlag(),
					&cli.Uint64Flag{
						Name:     "first-added",
						Usage:    "Piece id the contract will assign to the first new piece",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "piece",
						Usage:    "Piece CID (repeatable, order preserved)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "piece-metadata",
						Usage: "Per-piece metadata entry as index:key=value (repeatable)",
					},
				},
				Action: runAddPieces,
			},
			{
				Name:  "schedule-piece-removals",
				Usage: "Sign a SchedulePieceRemovals authorization",
				Flags: []cli.Flag{
					clientDataSetIdFlag(),
					&cli.Uint64SliceFlag{
						Name:     "piece-id",
						Usage:    "Assigned piece id to remove (repeatable)",
						Required: true,
					},
				},
				Action: runSchedulePieceRemovals,
			},
			{
				Name:   "delete-data-set",
				Usage:  "Sign a DeleteDataSet authorization",
				Flags:  []cli.Flag{clientDataSetIdFlag()},
				Action: runDeleteDataSet,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func clientDataSetIdFlag() cli.Flag {
	return &cli.Uint64Flag{
		Name:     "client-dataset-id",
		Aliases:  []string{"id"},
		Usage:    "Client data set id",
		Required: true,
	}
}

type signingContext struct {
	authorizer *authSigner.Authorizer
	signer     authSigner.Signer
	logger     *zap.Logger
}

func newSigningContext(c *cli.Context) (*signingContext, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, err
	}

	chainId := config.ChainId(c.Uint64("chain-id"))
	if !config.IsSupportedChain(chainId) {
		return nil, fmt.Errorf("unsupported chain id %d, supported: %s", chainId, config.GetSupportedChainIDsString())
	}

	contract := c.String("service-contract")
	domain, err := config.DomainForChain(chainId)
	if contract != "" {
		domain = config.NewDomain(chainId, common.HexToAddress(contract))
	} else if err != nil {
		return nil, err
	}

	signer, err := newSigner(c, l)
	if err != nil {
		return nil, err
	}

	l.Debug("signing context ready",
		zap.Uint64("chainId", uint64(chainId)),
		zap.String("verifyingContract", domain.VerifyingContract),
		zap.String("signer", signer.Address().Hex()),
	)

	return &signingContext{
		authorizer: authSigner.NewAuthorizer(domain, l),
		signer:     signer,
		logger:     l,
	}, nil
}

func newSigner(c *cli.Context, l *zap.Logger) (authSigner.Signer, error) {
	keyId := c.String("kms-key-id")
	privateKey := c.String("private-key")

	switch {
	case keyId != "" && privateKey != "":
		return nil, fmt.Errorf("--private-key and --kms-key-id are mutually exclusive")
	case keyId != "":
		cfg, err := internalaws.LoadAWSConfig(c.Context, c.String("aws-region"))
		if err != nil {
			return nil, err
		}
		if arn, err := internalaws.CallerIdentityArn(c.Context, cfg); err == nil {
			l.Debug("resolved AWS credentials", zap.String("callerArn", arn))
		}
		return authSigner.NewKMSSigner(c.Context, kms.NewFromConfig(cfg), keyId, l)
	case privateKey != "":
		return authSigner.NewLocalSigner(privateKey)
	default:
		return nil, fmt.Errorf("one of --private-key or --kms-key-id is required")
	}
}

type output struct {
	Operation string                    `json:"operation"`
	Signer    string                    `json:"signer"`
	Auth      *authSigner.AuthSignature `json:"auth"`
	ExtraData hexutil.Bytes             `json:"extraData,omitempty"`
}

func emit(c *cli.Context, out *output) error {
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(encoded))
	return nil
}

// parseMetadata parses repeated key=value entries preserving order
func parseMetadata(raw []string) ([]operations.MetadataEntry, error) {
	entries := make([]operations.MetadataEntry, 0, len(raw))
	for _, item := range raw {
		key, value, found := strings.Cut(item, "=")
		if !found {
			return nil, fmt.Errorf("metadata entry %q is not key=value", item)
		}
		entries = append(entries, operations.MetadataEntry{Key: key, Value: value})
	}
	return entries, nil
}

// parsePieceMetadata parses repeated index:key=value entries into one
// metadata list per piece
func parsePieceMetadata(raw []string, pieceCount int) ([][]operations.MetadataEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	metadata := make([][]operations.MetadataEntry, pieceCount)
	for i := range metadata {
		metadata[i] = []operations.MetadataEntry{}
	}
	for _, item := range raw {
		idxStr, rest, found := strings.Cut(item, ":")
		if !found {
			return nil, fmt.Errorf("piece metadata entry %q is not index:key=value", item)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, fmt.Errorf("piece metadata entry %q has a bad index: %w", item, err)
		}
		if idx < 0 || idx >= pieceCount {
			return nil, fmt.Errorf("piece metadata index %d out of range for %d pieces", idx, pieceCount)
		}
		key, value, found := strings.Cut(rest, "=")
		if !found {
			return nil, fmt.Errorf("piece metadata entry %q is not index:key=value", item)
		}
		metadata[idx] = append(metadata[idx], operations.MetadataEntry{Key: key, Value: value})
	}
	return metadata, nil
}

func runCreateDataSet(c *cli.Context) error {
	sc, err := newSigningContext(c)
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(c.StringSlice("metadata"))
	if err != nil {
		return err
	}

	req, err := operations.NewCreateDataSet(c.Uint64("client-dataset-id"), common.HexToAddress(c.String("payee")), metadata)
	if err != nil {
		return err
	}
	auth, err := sc.authorizer.Sign(c.Context, sc.signer, req)
	if err != nil {
		return err
	}

	keys, values := extraData.MetadataToKeysValues(metadata)
	payload, err := extraData.EncodeCreateDataSet(
		sc.signer.Address(),
		new(big.Int).SetUint64(c.Uint64("client-dataset-id")),
		keys, values,
		auth.Signature,
	)
	if err != nil {
		return err
	}

	return emit(c, &output{
		Operation: "CreateDataSet",
		Signer:    sc.signer.Address().Hex(),
		Auth:      auth,
		ExtraData: payload,
	})
}

func runAddPieces(c *cli.Context) error {
	sc, err := newSigningContext(c)
	if err != nil {
		return err
	}

	pieceRefs := c.StringSlice("piece")
	pieces, err := operations.ResolvePieces(operations.NewCidResolver(), pieceRefs)
	if err != nil {
		return err
	}
	metadata, err := parsePieceMetadata(c.StringSlice("piece-metadata"), len(pieces))
	if err != nil {
		return err
	}

	req, err := operations.NewAddPieces(c.Uint64("client-dataset-id"), c.Uint64("first-added"), pieces, metadata)
	if err != nil {
		return err
	}
	auth, err := sc.authorizer.Sign(c.Context, sc.signer, req)
	if err != nil {
		return err
	}

	if metadata == nil {
		metadata = make([][]operations.MetadataEntry, len(pieces))
	}
	keys, values := extraData.PieceMetadataToKeysValues(metadata)
	payload, err := extraData.EncodeAddPieces(auth.Signature, keys, values)
	if err != nil {
		return err
	}

	return emit(c, &output{
		Operation: "AddPieces",
		Signer:    sc.signer.Address().Hex(),
		Auth:      auth,
		ExtraData: payload,
	})
}

func runSchedulePieceRemovals(c *cli.Context) error {
	sc, err := newSigningContext(c)
	if err != nil {
		return err
	}

	req, err := operations.NewSchedulePieceRemovals(c.Uint64("client-dataset-id"), c.Uint64Slice("piece-id"))
	if err != nil {
		return err
	}
	auth, err := sc.authorizer.Sign(c.Context, sc.signer, req)
	if err != nil {
		return err
	}

	return emit(c, &output{
		Operation: "SchedulePieceRemovals",
		Signer:    sc.signer.Address().Hex(),
		Auth:      auth,
	})
}

func runDeleteDataSet(c *cli.Context) error {
	sc, err := newSigningContext(c)
	if err != nil {
		return err
	}

	req, err := operations.NewDeleteDataSet(c.Uint64("client-dataset-id"))
	if err != nil {
		return err
	}
	auth, err := sc.authorizer.Sign(c.Context, sc.signer, req)
	if err != nil {
		return err
	}

	return emit(c, &output{
		Operation: "DeleteDataSet",
		Signer:    sc.signer.Address().Hex(),
		Auth:      auth,
	})
}
