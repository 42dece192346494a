package schema

import (
	"github.com/protrend/regnet/pkg/cascade"
	"github.com/protrend/regnet/pkg/ident"
	"github.com/protrend/regnet/pkg/unique"
)

// Entity names
const (
	Organism              = "organism"
	Regulator             = "regulator"
	Gene                  = "gene"
	TFBS                  = "tfbs"
	RegulatoryInteraction = "regulatory_interaction"
	Effector              = "effector"
	Evidence              = "evidence"
	Operon                = "operon"
	Pathway               = "pathway"
	Publication           = "publication"
	RegulatoryFamily      = "regulatory_family"
	Source                = "source"
)

func has(names ...string) []Relation {
	relations := make([]Relation, len(names))
	for i, name := range names {
		relations[i] = Relation{Name: name, Target: name, Type: Has}
	}
	return relations
}

func data(names ...string) []Relation {
	relations := make([]Relation, len(names))
	for i, name := range names {
		relations[i] = Relation{Name: "data_" + name, Target: name, Type: Has}
	}
	return relations
}

func owns(names ...string) []Relation {
	relations := make([]Relation, len(names))
	for i, name := range names {
		relations[i] = Relation{Name: name, Target: name, Type: Owner}
	}
	return relations
}

var dataSource = Relation{Name: "data_source", Target: Source, Type: Owner}

func relations(groups ...[]Relation) (relations []Relation) {
	for _, group := range groups {
		relations = append(relations, group...)
	}
	return relations
}

// locus keys are shared by regulators and genes
var locusKeys = []unique.Key{
	{Field: "locus_tag"},
	{Field: "uniprot_accession", Optional: true},
}

var locusFields = []string{
	"locus_tag", "uniprot_accession", "name", "synonyms", "function", "description",
	"ncbi_gene", "ncbi_protein", "genbank_accession", "refseq_accession",
	"protein_sequence", "gene_sequence", "strand", "start", "stop",
}

// ProTReND returns the schema of the ProTReND regulatory network, using identifiers with the given header.
func ProTReND(header string) (*Schema, error) {
	return New(header, protrendEntities(), protrendCascade)
}

// Default is like ProTReND, but uses the default header.
func Default() *Schema {
	s, err := ProTReND(ident.Header)
	if err != nil {
		panic("schema: invalid ProTReND schema: " + err.Error())
	}
	return s
}

// protrendCascade lists the entities to delete before an entity.
var protrendCascade = cascade.Table{
	Organism: {
		{Relation: Regulator, Entity: Regulator},
		{Relation: Gene, Entity: Gene},
		{Relation: TFBS, Entity: TFBS},
		{Relation: RegulatoryInteraction, Entity: RegulatoryInteraction},
	},
	Regulator: {
		{Relation: RegulatoryInteraction, Entity: RegulatoryInteraction},
	},
	Gene: {
		{Relation: Operon, Entity: Operon},
		{Relation: RegulatoryInteraction, Entity: RegulatoryInteraction},
	},
	Effector: {
		{Relation: RegulatoryInteraction, Entity: RegulatoryInteraction},
	},
}

func protrendEntities() []*Entity {
	return []*Entity{
		{
			Name:  Organism,
			Label: "Organism",
			Tag:   "ORG",
			Fields: []string{
				"name", "ncbi_taxonomy", "species", "strain",
				"refseq_accession", "refseq_ftp", "genbank_accession", "genbank_ftp",
				"ncbi_assembly", "assembly_accession",
			},
			Keys: []unique.Key{
				{Field: "name"},
				{Field: "ncbi_taxonomy", Integer: true, Optional: true},
			},
			Relations: relations(
				[]Relation{dataSource},
				has(Operon, Regulator, Gene, TFBS, RegulatoryInteraction),
			),
		},
		{
			Name:   Regulator,
			Label:  "Regulator",
			Tag:    "REG",
			Fields: append([]string{"mechanism"}, locusFields...),
			Keys:   locusKeys,
			Relations: relations(
				[]Relation{dataSource},
				has(Evidence, Publication, Pathway, Effector, RegulatoryFamily, Organism, Gene, TFBS, RegulatoryInteraction),
			),
		},
		{
			Name:   Gene,
			Label:  "Gene",
			Tag:    "GEN",
			Fields: locusFields,
			Keys:   locusKeys,
			Relations: relations(
				[]Relation{dataSource},
				has(Evidence, Publication, Pathway, Operon, Organism, Regulator, TFBS, RegulatoryInteraction),
			),
		},
		{
			Name:   TFBS,
			Label:  "TFBS",
			Tag:    "TBS",
			Fields: []string{"organism", "sequence", "strand", "start", "stop", "length"},
			Keys: []unique.Key{
				{Field: "site_hash", Hash: []string{"organism", "sequence", "strand", "start", "stop", "length"}},
			},
			Relations: relations(
				[]Relation{dataSource},
				has(Evidence, Publication),
				data(Organism),
				has(Regulator, Gene, RegulatoryInteraction),
			),
			References: []Reference{
				{Field: "organism", Relation: "data_organism", Required: true},
			},
		},
		{
			Name:   RegulatoryInteraction,
			Label:  "RegulatoryInteraction",
			Tag:    "RIN",
			Fields: []string{"organism", "regulator", "gene", "tfbs", "effector", "regulatory_effect"},
			Keys: []unique.Key{
				{Field: "regulatory_interaction_hash", Hash: []string{"organism", "regulator", "gene", "tfbs", "effector", "regulatory_effect"}},
			},
			Relations: relations(
				[]Relation{dataSource},
				has(Evidence, Publication),
				data(Effector, Organism, Regulator, Gene, TFBS),
			),
			References: []Reference{
				{Field: "organism", Relation: "data_organism", Required: true},
				{Field: "regulator", Relation: "data_regulator", Required: true},
				{Field: "gene", Relation: "data_gene", Required: true},
				{Field: "tfbs", Relation: "data_tfbs"},
				{Field: "effector", Relation: "data_effector"},
			},
		},
		{
			Name:   Effector,
			Label:  "Effector",
			Tag:    "EFC",
			Fields: []string{"name", "kegg_compounds"},
			Keys:   []unique.Key{{Field: "name"}},
			Relations: relations(
				[]Relation{dataSource},
				has(Regulator, RegulatoryInteraction),
			),
		},
		{
			Name:      Evidence,
			Label:     "Evidence",
			Tag:       "EVI",
			Fields:    []string{"name", "description"},
			Keys:      []unique.Key{{Field: "name"}},
			Relations: has(Regulator, Operon, Gene, TFBS, RegulatoryInteraction),
		},
		{
			Name:   Operon,
			Label:  "Operon",
			Tag:    "OPN",
			Fields: []string{"operon_db_id", "name", "function", "genes", "strand", "start", "stop"},
			Keys:   []unique.Key{{Field: "operon_db_id"}},
			Relations: relations(
				[]Relation{dataSource},
				has(Evidence, Publication, Organism, Gene),
			),
		},
		{
			Name:   Pathway,
			Label:  "Pathway",
			Tag:    "PTH",
			Fields: []string{"name", "kegg_pathways"},
			Keys:   []unique.Key{{Field: "name"}},
			Relations: relations(
				[]Relation{dataSource},
				has(Regulator, Gene),
			),
		},
		{
			Name:      Publication,
			Label:     "Publication",
			Tag:       "PUB",
			Fields:    []string{"pmid", "doi", "title", "author", "year"},
			Keys:      []unique.Key{{Field: "pmid", Integer: true}},
			Relations: has(RegulatoryFamily, Regulator, Operon, Gene, TFBS, RegulatoryInteraction),
		},
		{
			Name:   RegulatoryFamily,
			Label:  "RegulatoryFamily",
			Tag:    "RFAM",
			Fields: []string{"name", "mechanism", "rfam", "description"},
			Keys:   []unique.Key{{Field: "name"}},
			Relations: relations(
				[]Relation{dataSource},
				has(Publication, Regulator),
			),
		},
		{
			Name:      Source,
			Label:     "Source",
			Tag:       "SRC",
			Fields:    []string{"name", "type", "url", "doi", "authors", "description"},
			Keys:      []unique.Key{{Field: "name"}},
			Relations: owns(Organism, Pathway, RegulatoryFamily, Regulator, Operon, Gene, TFBS, Effector, RegulatoryInteraction),
		},
	}
}
