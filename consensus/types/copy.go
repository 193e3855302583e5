package types

// CopyAttestation returns a deep copy of the attestation.
func CopyAttestation(att *Attestation) *Attestation {
	if att == nil {
		return nil
	}
	return &Attestation{
		AggregationBits: append(att.AggregationBits[:0:0], att.AggregationBits...),
		Data:            CopyAttestationData(att.Data),
		Signature:       safeCopyBytes(att.Signature),
	}
}

// CopyAttestationData returns a deep copy of the attestation data.
func CopyAttestationData(data *AttestationData) *AttestationData {
	if data == nil {
		return nil
	}
	return &AttestationData{
		Slot:            data.Slot,
		CommitteeIndex:  data.CommitteeIndex,
		BeaconBlockRoot: safeCopyBytes(data.BeaconBlockRoot),
		Source:          CopyCheckpoint(data.Source),
		Target:          CopyCheckpoint(data.Target),
	}
}

// CopySignedBeaconBlock returns a deep copy of the signed block.
func CopySignedBeaconBlock(sb *SignedBeaconBlock) *SignedBeaconBlock {
	if sb == nil {
		return nil
	}
	return &SignedBeaconBlock{
		Block:     CopyBeaconBlock(sb.Block),
		Signature: safeCopyBytes(sb.Signature),
	}
}

// CopyBeaconBlock returns a deep copy of the unsigned block.
func CopyBeaconBlock(b *BeaconBlock) *BeaconBlock {
	if b == nil {
		return nil
	}
	return &BeaconBlock{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    safeCopyBytes(b.ParentRoot),
		StateRoot:     safeCopyBytes(b.StateRoot),
		Body:          CopyBeaconBlockBody(b.Body),
	}
}

// CopyBeaconBlockBody returns a deep copy of the block body.
func CopyBeaconBlockBody(body *BeaconBlockBody) *BeaconBlockBody {
	if body == nil {
		return nil
	}
	b := &BeaconBlockBody{
		RandaoReveal: safeCopyBytes(body.RandaoReveal),
		Eth1Data:     CopyEth1Data(body.Eth1Data),
		Graffiti:     safeCopyBytes(body.Graffiti),
	}
	for _, ps := range body.ProposerSlashings {
		b.ProposerSlashings = append(b.ProposerSlashings, CopyProposerSlashing(ps))
	}
	for _, as := range body.AttesterSlashings {
		b.AttesterSlashings = append(b.AttesterSlashings, CopyAttesterSlashing(as))
	}
	for _, a := range body.Attestations {
		b.Attestations = append(b.Attestations, CopyAttestation(a))
	}
	for _, d := range body.Deposits {
		b.Deposits = append(b.Deposits, CopyDeposit(d))
	}
	for _, e := range body.VoluntaryExits {
		b.VoluntaryExits = append(b.VoluntaryExits, CopySignedVoluntaryExit(e))
	}
	return b
}

// CopyProposerSlashing returns a deep copy of the proposer slashing.
func CopyProposerSlashing(ps *ProposerSlashing) *ProposerSlashing {
	if ps == nil {
		return nil
	}
	return &ProposerSlashing{
		Header1: CopySignedBeaconBlockHeader(ps.Header1),
		Header2: CopySignedBeaconBlockHeader(ps.Header2),
	}
}

// CopySignedBeaconBlockHeader returns a deep copy of the signed header.
func CopySignedBeaconBlockHeader(h *SignedBeaconBlockHeader) *SignedBeaconBlockHeader {
	if h == nil {
		return nil
	}
	return &SignedBeaconBlockHeader{
		Header:    CopyBeaconBlockHeader(h.Header),
		Signature: safeCopyBytes(h.Signature),
	}
}

// CopyBeaconBlockHeader returns a deep copy of the header.
func CopyBeaconBlockHeader(h *BeaconBlockHeader) *BeaconBlockHeader {
	if h == nil {
		return nil
	}
	return &BeaconBlockHeader{
		Slot:          h.Slot,
		ProposerIndex: h.ProposerIndex,
		ParentRoot:    safeCopyBytes(h.ParentRoot),
		StateRoot:     safeCopyBytes(h.StateRoot),
		BodyRoot:      safeCopyBytes(h.BodyRoot),
	}
}

// CopyAttesterSlashing returns a deep copy of the attester slashing.
func CopyAttesterSlashing(as *AttesterSlashing) *AttesterSlashing {
	if as == nil {
		return nil
	}
	return &AttesterSlashing{
		Attestation1: CopyIndexedAttestation(as.Attestation1),
		Attestation2: CopyIndexedAttestation(as.Attestation2),
	}
}

// CopyIndexedAttestation returns a deep copy of the indexed attestation.
func CopyIndexedAttestation(ia *IndexedAttestation) *IndexedAttestation {
	if ia == nil {
		return nil
	}
	return &IndexedAttestation{
		AttestingIndices: append(ia.AttestingIndices[:0:0], ia.AttestingIndices...),
		Data:             CopyAttestationData(ia.Data),
		Signature:        safeCopyBytes(ia.Signature),
	}
}

// CopySignedVoluntaryExit returns a deep copy of the signed voluntary exit.
func CopySignedVoluntaryExit(e *SignedVoluntaryExit) *SignedVoluntaryExit {
	if e == nil {
		return nil
	}
	exit := &SignedVoluntaryExit{Signature: safeCopyBytes(e.Signature)}
	if e.Exit != nil {
		exit.Exit = &VoluntaryExit{Epoch: e.Exit.Epoch, ValidatorIndex: e.Exit.ValidatorIndex}
	}
	return exit
}

// CopyDeposit returns a deep copy of the deposit.
func CopyDeposit(d *Deposit) *Deposit {
	if d == nil {
		return nil
	}
	dep := &Deposit{}
	for _, p := range d.Proof {
		dep.Proof = append(dep.Proof, safeCopyBytes(p))
	}
	if d.Data != nil {
		dep.Data = &DepositData{
			Pubkey:                safeCopyBytes(d.Data.Pubkey),
			WithdrawalCredentials: safeCopyBytes(d.Data.WithdrawalCredentials),
			Amount:                d.Data.Amount,
			Signature:             safeCopyBytes(d.Data.Signature),
		}
	}
	return dep
}

// CopyEth1Data returns a deep copy of the eth1 data.
func CopyEth1Data(e *Eth1Data) *Eth1Data {
	if e == nil {
		return nil
	}
	return &Eth1Data{
		DepositRoot:  safeCopyBytes(e.DepositRoot),
		DepositCount: e.DepositCount,
		BlockHash:    safeCopyBytes(e.BlockHash),
	}
}

// CopyBeaconState returns a deep copy of the state.
func CopyBeaconState(s *BeaconState) *BeaconState {
	if s == nil {
		return nil
	}
	st := &BeaconState{
		GenesisTime:           s.GenesisTime,
		GenesisValidatorsRoot: safeCopyBytes(s.GenesisValidatorsRoot),
		Slot:                  s.Slot,
		LatestBlockHeader:     CopyBeaconBlockHeader(s.LatestBlockHeader),
		Eth1Data:              CopyEth1Data(s.Eth1Data),
		Eth1DepositIndex:      s.Eth1DepositIndex,
		Balances:              append(s.Balances[:0:0], s.Balances...),
		CurrentJustified:      CopyCheckpoint(s.CurrentJustified),
		Finalized:             CopyCheckpoint(s.Finalized),
	}
	for _, v := range s.Eth1DataVotes {
		st.Eth1DataVotes = append(st.Eth1DataVotes, CopyEth1Data(v))
	}
	for _, v := range s.Validators {
		vCopy := *v
		vCopy.Pubkey = safeCopyBytes(v.Pubkey)
		vCopy.WithdrawalCredentials = safeCopyBytes(v.WithdrawalCredentials)
		st.Validators = append(st.Validators, &vCopy)
	}
	return st
}

func safeCopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
